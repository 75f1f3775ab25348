package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns a human-readable kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed pipeline value: anything a provider response,
// a YAML literal, or an upstream step output can produce. The zero Value is
// null. Values are frozen once built; nothing in this package mutates a
// contained list or map after construction.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value holding the given items.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindList, list: out}
}

// Map returns a map Value. The input map is copied so later caller
// mutations cannot leak into the Value.
func Map(entries map[string]Value) Value {
	out := make(map[string]Value, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return Value{kind: KindMap, m: out}
}

// FromAny deep-converts a plain Go value (JSON or YAML decoding output)
// into a Value. Unrecognized types are carried as their string form.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for k, item := range t {
			entries[k] = FromAny(item)
		}
		return Value{kind: KindMap, m: entries}
	case map[any]any:
		// Older YAML decoders produce interface-keyed maps.
		entries := make(map[string]Value, len(t))
		for k, item := range t {
			entries[fmt.Sprintf("%v", k)] = FromAny(item)
		}
		return Value{kind: KindMap, m: entries}
	case map[string]Value:
		return Map(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// FromAnyMap converts a plain string-keyed map into a Value map, preserving
// keys and deep-converting every entry.
func FromAnyMap(m map[string]any) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

// ToAny deep-converts the Value back into plain Go data suitable for JSON
// or YAML encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

// Kind reports the Value's dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the float payload.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsList returns the list payload. The returned slice is the Value's own
// storage and must not be modified.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsMap returns the map payload. The returned map is the Value's own
// storage and must not be modified.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Lookup navigates a dotted path: map segments select keys, list segments
// parse as zero-based indexes. An empty path returns the Value itself.
func (v Value) Lookup(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		switch cur.kind {
		case KindMap:
			next, ok := cur.m[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindList:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return Value{}, false
			}
			cur = cur.list[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Text coerces the Value to its textual form for string interpolation:
// null becomes the empty string, numbers their decimal form, and lists and
// maps their JSON encoding.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList, KindMap:
		encoded, err := json.Marshal(v.ToAny())
		if err != nil {
			return fmt.Sprintf("%v", v.ToAny())
		}
		return string(encoded)
	default:
		return ""
	}
}

// Truthy reports the Value's boolean interpretation: false, null, zero,
// the empty string, and empty containers are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	default:
		return false
	}
}

// Equal reports deep equality. Int and Float are distinct kinds, so
// Int(5) does not equal Float(5).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// asNumber coerces the Value to a float64 for arithmetic. Integers and
// numeric strings report isInt so integer arithmetic can stay integral.
func (v Value) asNumber() (f float64, isInt bool, ok bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true, true
	case KindFloat:
		return v.f, false, true
	case KindString:
		t := strings.TrimSpace(v.s)
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return float64(n), true, true
		}
		if parsed, err := strconv.ParseFloat(t, 64); err == nil {
			return parsed, false, true
		}
	}
	return 0, false, false
}

// numberValue builds the narrowest numeric Value: integral results of
// integer inputs stay integers, everything else is a float.
func numberValue(f float64, wantInt bool) Value {
	if wantInt && f == math.Trunc(f) && math.Abs(f) < 1<<62 {
		return Int(int64(f))
	}
	return Float(f)
}
