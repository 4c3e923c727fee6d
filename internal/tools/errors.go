// In file: internal/tools/errors.go
package tools

import "fmt"

// UnknownToolError is returned by Dispatch when the model names a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ArgumentValidationError is returned by Dispatch when arguments do not match the tool's
// schema. No handler has run and no network call was made.
type ArgumentValidationError struct {
	Tool     string
	Argument string
	Reason   string
}

func (e *ArgumentValidationError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for %s: %s", e.Argument, e.Tool, e.Reason)
}
