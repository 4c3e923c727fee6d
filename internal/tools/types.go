// In file: internal/tools/types.go

// Package tools defines the tools the language model may call, the registry that validates
// and dispatches those calls, and the Notion-backed tool implementations. The descriptor
// types are provider-agnostic and are translated into each LLM API's own format by the
// llm package.
package tools

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Tool is a tool descriptor: what the model is told it may call.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`
	// Function holds the name, description and parameter schema.
	Function Function `json:"function"`
}

// Function defines the name, description, and parameters of a callable tool.
type Function struct {
	// Name is the identifier the model uses to call the tool (e.g., "query_database").
	Name string `json:"name"`
	// Description is what the model reads to decide when to use the tool.
	Description string `json:"description"`
	// Parameters is the JSON Schema of the arguments object.
	Parameters JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	// Type is one of "object", "string", "number", "integer", "boolean", "array".
	Type string `json:"type"`
	// Description explains what a specific parameter is for.
	Description string `json:"description,omitempty"`
	// Properties describes the members of an object schema.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	// Required lists the members that must be present.
	Required []string `json:"required,omitempty"`
	// Items describes the elements of an array schema.
	Items *JSONSchema `json:"items,omitempty"`
	// Enum restricts a string to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
}

// ToolCall is a request from the LLM to execute a tool, in the OpenAI wire shape.
type ToolCall struct {
	// ID matches the tool result back to this request.
	ID string `json:"id"`
	// Type is always "function".
	Type string `json:"type"`
	// Function carries the tool name and raw JSON arguments.
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and arguments of a function call requested by the LLM.
type ToolCallFunction struct {
	Name string `json:"name"`
	// Arguments is the JSON object text produced by the model. It is untrusted.
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a Tool of type "function".
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// clone returns a deep copy of the descriptor so registry snapshots cannot be mutated.
func (t Tool) clone() Tool {
	t.Function.Parameters = *t.Function.Parameters.clone()
	return t
}

func (s *JSONSchema) clone() *JSONSchema {
	if s == nil {
		return nil
	}
	c := *s
	if s.Properties != nil {
		c.Properties = make(map[string]*JSONSchema, len(s.Properties))
		for k, v := range s.Properties {
			c.Properties[k] = v.clone()
		}
	}
	if s.Required != nil {
		c.Required = append([]string(nil), s.Required...)
	}
	if s.Enum != nil {
		c.Enum = append([]string(nil), s.Enum...)
	}
	c.Items = s.Items.clone()
	return &c
}
