// In file: internal/tools/validate.go
package tools

import (
	"fmt"
	"math"
	"slices"
)

// validateArguments checks required keys, rejects keys the schema does not declare and
// type-checks every supplied value, recursing into objects and arrays.
func validateArguments(tool string, schema JSONSchema, args Arguments) error {
	for _, name := range schema.Required {
		v, ok := args[name]
		if !ok || v.Kind() == KindNull {
			return &ArgumentValidationError{Tool: tool, Argument: name, Reason: "is required"}
		}
	}

	for _, name := range args.Names() {
		prop, ok := schema.Properties[name]
		if !ok {
			return &ArgumentValidationError{Tool: tool, Argument: name, Reason: "is not a parameter of this tool"}
		}
		if err := checkValue(args[name], prop); err != nil {
			return &ArgumentValidationError{Tool: tool, Argument: name, Reason: err.Error()}
		}
	}
	return nil
}

func checkValue(v Value, schema *JSONSchema) error {
	if schema == nil || schema.Type == "" {
		return nil
	}
	// Optional arguments may be sent as explicit nulls.
	if v.Kind() == KindNull {
		return nil
	}

	switch schema.Type {
	case "string":
		s, ok := v.Str()
		if !ok {
			return mismatch("string", v)
		}
		if len(schema.Enum) > 0 && !slices.Contains(schema.Enum, s) {
			return fmt.Errorf("must be one of %v, got %q", schema.Enum, s)
		}
	case "number":
		if _, ok := v.Num(); !ok {
			return mismatch("number", v)
		}
	case "integer":
		n, ok := v.Num()
		if !ok {
			return mismatch("integer", v)
		}
		if math.Trunc(n) != n {
			return fmt.Errorf("expected integer but got %v", n)
		}
	case "boolean":
		if _, ok := v.Bool(); !ok {
			return mismatch("boolean", v)
		}
	case "object":
		members, ok := v.Object()
		if !ok {
			return mismatch("object", v)
		}
		for _, req := range schema.Required {
			if _, present := members[req]; !present {
				return fmt.Errorf("missing required field %q", req)
			}
		}
		// Free-form objects (no declared properties) accept any members.
		for key, member := range members {
			if prop, declared := schema.Properties[key]; declared {
				if err := checkValue(member, prop); err != nil {
					return fmt.Errorf("field %s: %w", key, err)
				}
			}
		}
	case "array":
		items, ok := v.Array()
		if !ok {
			return mismatch("array", v)
		}
		for i, item := range items {
			if err := checkValue(item, schema.Items); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unsupported schema type %q", schema.Type)
	}
	return nil
}

func mismatch(expected string, v Value) error {
	return fmt.Errorf("expected %s but got %s", expected, v.Kind())
}
