// In file: internal/tools/executor.go
package tools

import "context"

// ToolExecutor is implemented by every tool the registry can dispatch to.
type ToolExecutor interface {
	// Definition returns the descriptor shown to the LLM.
	Definition() Tool

	// Execute runs the tool with arguments that have already been validated against
	// Definition. The returned payload is rendered as JSON into the tool turn.
	Execute(ctx context.Context, args Arguments) (any, error)
}
