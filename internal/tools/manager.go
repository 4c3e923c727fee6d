// In file: internal/tools/manager.go
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the tools the model may call. It is built once at startup and is safe
// for concurrent dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolExecutor
	defs  map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolExecutor),
		defs:  make(map[string]Tool),
	}
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(tool ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	def := tool.Definition()
	name := def.Function.Name
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if def.Type == "" {
		def.Type = ToolTypeFunction
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.defs[name] = def.clone()
	return nil
}

// ListDescriptors returns a snapshot of every descriptor, sorted by name. The returned
// values are copies; changing them does not affect the registry.
func (r *Registry) ListDescriptors() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Tool, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def.clone())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Function.Name < defs[j].Function.Name })
	return defs
}

// Dispatch validates an invocation against the named tool's descriptor and runs it.
//
// Unknown names return *UnknownToolError and bad arguments return *ArgumentValidationError;
// in both cases no handler runs. A handler error is returned together with a failed Result
// describing it, so the caller can both relay the Result to the model and react to the
// error (for example, stop on an auth failure).
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (*Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[inv.Name]
	def := r.defs[inv.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownToolError{Name: inv.Name}
	}
	args := inv.Args
	if args == nil {
		args = Arguments{}
	}
	if err := validateArguments(inv.Name, def.Function.Parameters, args); err != nil {
		return nil, err
	}

	payload, err := tool.Execute(ctx, args)
	if err != nil {
		return Failure(err), fmt.Errorf("tool %s: %w", inv.Name, err)
	}
	return &Result{Success: true, Payload: payload}, nil
}

// ToolCount returns the number of registered tools.
func (r *Registry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
