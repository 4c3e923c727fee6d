// In file: internal/notion/properties.go
package notion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EncodeProperties turns simple values supplied by the model into Notion property payloads,
// using the schema to pick the payload shape for each property. A value that is already a
// map is assumed to be a raw Notion payload and is passed through untouched.
func EncodeProperties(schema map[string]PropertySchema, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))

	// Sorted so the first reported problem is stable.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := values[name]
		prop, ok := lookupProperty(schema, name)
		if !ok {
			return nil, &RemoteValidationError{
				Code:    "validation_error",
				Message: fmt.Sprintf("%s is not a property that exists. Known properties: %s", name, strings.Join(propertyNames(schema), ", ")),
			}
		}
		if raw, isRaw := value.(map[string]any); isRaw {
			out[prop.name] = raw
			continue
		}
		encoded, err := encodeValue(prop.Type, value)
		if err != nil {
			return nil, &RemoteValidationError{
				Code:    "validation_error",
				Message: fmt.Sprintf("property %q (%s): %v", prop.name, prop.Type, err),
			}
		}
		out[prop.name] = encoded
	}
	return out, nil
}

// SchemaFromPage derives a property schema from the properties of an existing page.
func SchemaFromPage(page *Object) map[string]PropertySchema {
	schema := make(map[string]PropertySchema, len(page.Properties))
	for name, prop := range page.Properties {
		schema[name] = PropertySchema{ID: prop.ID, Name: name, Type: prop.Type}
	}
	return schema
}

type namedSchema struct {
	name string
	PropertySchema
}

// lookupProperty matches exactly first, then case-insensitively, since models tend to
// lowercase property names.
func lookupProperty(schema map[string]PropertySchema, name string) (namedSchema, bool) {
	if p, ok := schema[name]; ok {
		return namedSchema{name: name, PropertySchema: p}, true
	}
	for key, p := range schema {
		if strings.EqualFold(key, name) {
			return namedSchema{name: key, PropertySchema: p}, true
		}
	}
	return namedSchema{}, false
}

func propertyNames(schema map[string]PropertySchema) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func encodeValue(propType string, value any) (any, error) {
	switch propType {
	case "title":
		return map[string]any{"title": richTextPayload(toString(value))}, nil
	case "rich_text":
		return map[string]any{"rich_text": richTextPayload(toString(value))}, nil
	case "number":
		if value == nil {
			return map[string]any{"number": nil}, nil
		}
		n, err := toNumber(value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"number": n}, nil
	case "select":
		if value == nil {
			return map[string]any{"select": nil}, nil
		}
		return map[string]any{"select": map[string]any{"name": toString(value)}}, nil
	case "status":
		return map[string]any{"status": map[string]any{"name": toString(value)}}, nil
	case "multi_select":
		names := toStringList(value)
		opts := make([]map[string]any, 0, len(names))
		for _, n := range names {
			opts = append(opts, map[string]any{"name": n})
		}
		return map[string]any{"multi_select": opts}, nil
	case "date":
		if value == nil {
			return map[string]any{"date": nil}, nil
		}
		return map[string]any{"date": map[string]any{"start": toString(value)}}, nil
	case "checkbox":
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"checkbox": b}, nil
	case "url":
		return map[string]any{"url": nullableString(value)}, nil
	case "email":
		return map[string]any{"email": nullableString(value)}, nil
	case "phone_number":
		return map[string]any{"phone_number": nullableString(value)}, nil
	default:
		return nil, fmt.Errorf("property type %q cannot be set from a plain value; pass a raw Notion payload object instead", propType)
	}
}

// richTextPayload builds a rich text array, splitting content at Notion's per-object limit.
func richTextPayload(s string) []map[string]any {
	chunks := splitText(s, maxRichTextLength)
	out := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, map[string]any{"type": "text", "text": map[string]any{"content": c}})
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func nullableString(v any) any {
	if v == nil {
		return nil
	}
	return toString(v)
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("expected true or false, got %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, toString(item))
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{toString(t)}
	}
}
