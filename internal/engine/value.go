package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a tagged variant over null/bool/number/string/array/map. Node
// outputs, variable defaults and resume payloads all pass through this type
// rather than raw JSON blobs, so executors and edge conditions see one
// consistent shape.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	m    map[string]Value
}

func Null() Value                    { return Value{kind: KindNull} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Number(n float64) Value         { return Value{kind: KindNumber, n: n} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value     { return Value{kind: KindArray, a: items} }
func Map(m map[string]Value) Value   { return Value{kind: KindMap, m: m} }

// ValueOf converts a plain Go value (as produced by encoding/json or a
// script runtime) into a Value. Unsupported types fall back to their string
// representation.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = ValueOf(item)
		}
		return Array(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Array(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = ValueOf(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload. Zero value for other kinds.
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload. Zero for other kinds.
func (v Value) Number() float64 { return v.n }

// Array returns the array payload, nil for other kinds.
func (v Value) Array() []Value { return v.a }

// Map returns the map payload, nil for other kinds.
func (v Value) Map() map[string]Value { return v.m }

// String renders the value as text. For KindString this is the raw string;
// other kinds render in a stable, human-readable form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		parts := make([]string, len(v.a))
		for i, item := range v.a {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// Truthy reports whether the value counts as true in an edge condition:
// false for null, false, zero and the empty string/array/map.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.a) > 0
	case KindMap:
		return len(v.m) > 0
	}
	return false
}

// Interface converts the value back to plain Go types, suitable for JSON
// encoding and for script runtime globals.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		items := make([]any, len(v.a))
		for i, item := range v.a {
			items[i] = item.Interface()
		}
		return items
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, item := range v.m {
			m[k] = item.Interface()
		}
		return m
	}
	return nil
}

// MarshalJSON encodes the value as its plain JSON equivalent.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes arbitrary JSON into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}
