// In file: internal/tools/args.go
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind is the JSON type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is a tagged JSON value decoded from model output. Exactly one payload field is
// meaningful, selected by Kind.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value { return Value{kind: KindBoolean, b: b} }
func NullValue() Value { return Value{} }
func ArrayValue(v ...Value) Value { return Value{kind: KindArray, arr: v} }
func ObjectValue(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// Kind reports the JSON type of the value.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number payload.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBoolean }

// Object returns the members of an object value.
func (v Value) Object() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Array returns the elements of an array value.
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Interface converts the value back to the plain Go shape encoding/json would produce.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBoolean:
		return v.b
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			m[k] = item.Interface()
		}
		return m
	case KindArray:
		a := make([]any, len(v.arr))
		for i, item := range v.arr {
			a[i] = item.Interface()
		}
		return a
	default:
		return nil
	}
}

// MarshalJSON lets Arguments be logged and echoed back to the model unchanged.
func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Interface()) }

// UnmarshalJSON decodes any JSON value into its tagged form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface tags a value produced by encoding/json (or an equivalent plain Go shape).
func FromInterface(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case bool:
		return BoolValue(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromInterface(item)
		}
		return ObjectValue(m)
	case []any:
		a := make([]Value, len(t))
		for i, item := range t {
			a[i] = FromInterface(item)
		}
		return ArrayValue(a...)
	case []string:
		a := make([]Value, len(t))
		for i, item := range t {
			a[i] = StringValue(item)
		}
		return ArrayValue(a...)
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// Arguments maps argument names to tagged values.
type Arguments map[string]Value

// Text returns a string argument, or "" when absent or of another kind.
func (a Arguments) Text(name string) string {
	s, _ := a[name].Str()
	return s
}

// Number returns a number argument and whether it was present.
func (a Arguments) Number(name string) (float64, bool) {
	return a[name].Num()
}

// Has reports whether the argument was supplied and is not null.
func (a Arguments) Has(name string) bool {
	v, ok := a[name]
	return ok && v.kind != KindNull
}

// Plain returns the argument converted back to plain Go values.
func (a Arguments) Plain(name string) any {
	v, ok := a[name]
	if !ok {
		return nil
	}
	return v.Interface()
}

// PlainMap returns an object argument as map[string]any, or nil.
func (a Arguments) PlainMap(name string) map[string]any {
	m, _ := a.Plain(name).(map[string]any)
	return m
}

// Names returns the argument names in sorted order.
func (a Arguments) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Invocation is one tool call requested by the model.
type Invocation struct {
	CallID string
	Name   string
	Args   Arguments
}

// ParseInvocation converts the model's raw JSON argument text into tagged values.
// Malformed or non-object JSON is an argument validation failure.
func ParseInvocation(callID, name, rawArgs string) (Invocation, error) {
	inv := Invocation{CallID: callID, Name: name, Args: Arguments{}}

	trimmed := strings.TrimSpace(rawArgs)
	if trimmed == "" || trimmed == "null" {
		return inv, nil
	}

	var v Value
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return inv, &ArgumentValidationError{Tool: name, Reason: fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}
	obj, ok := v.Object()
	if !ok {
		return inv, &ArgumentValidationError{Tool: name, Reason: fmt.Sprintf("arguments must be a JSON object, got %s", v.Kind())}
	}
	inv.Args = obj
	return inv, nil
}
