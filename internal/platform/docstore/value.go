package docstore

import (
	"sort"
	"strings"
	"time"
)

// Kind enumerates the value variants a document field can hold.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindTime
	KindMap
	KindArray
)

// Value is a single document field. Exactly one variant is populated,
// selected by Kind.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	m    Fields
	a    []Value
}

func Null() Value                 { return Value{} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Double(f float64) Value      { return Value{kind: KindDouble, f: f} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value      { return Value{kind: KindTime, t: t.UTC()} }
func Map(fields Fields) Value     { return Value{kind: KindMap, m: fields} }
func Array(values ...Value) Value { return Value{kind: KindArray, a: values} }

// StringMap builds a map value from plain strings (used for *_i18n fields).
func StringMap(values map[string]string) Value {
	fields := make(Fields, len(values))
	for k, v := range values {
		fields[k] = String(v)
	}
	return Map(fields)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsInt returns integer values, truncating doubles.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindDouble:
		return int64(v.f), true
	default:
		return 0, false
	}
}

func (v Value) AsDouble() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

func (v Value) AsMap() (Fields, bool) {
	return v.m, v.kind == KindMap
}

func (v Value) AsArray() ([]Value, bool) {
	return v.a, v.kind == KindArray
}

// Interface converts the value to the plain Go representation understood by
// the Firestore client.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindDouble:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindMap:
		return v.m.Interface()
	case KindArray:
		out := make([]any, len(v.a))
		for i, item := range v.a {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts values decoded by the Firestore client. Unsupported
// types (references, geo points, bytes) decode as null.
func FromInterface(raw any) Value {
	switch typed := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(typed)
	case int:
		return Int(int64(typed))
	case int32:
		return Int(int64(typed))
	case int64:
		return Int(typed)
	case float32:
		return Double(float64(typed))
	case float64:
		return Double(typed)
	case bool:
		return Bool(typed)
	case time.Time:
		return Time(typed)
	case map[string]any:
		return Map(FieldsFromMap(typed))
	case map[string]string:
		return StringMap(typed)
	case []any:
		values := make([]Value, len(typed))
		for i, item := range typed {
			values[i] = FromInterface(item)
		}
		return Array(values...)
	case []string:
		values := make([]Value, len(typed))
		for i, item := range typed {
			values[i] = String(item)
		}
		return Array(values...)
	default:
		return Null()
	}
}

// Fields is the top-level field map of a document.
type Fields map[string]Value

func FieldsFromMap(raw map[string]any) Fields {
	fields := make(Fields, len(raw))
	for k, v := range raw {
		fields[k] = FromInterface(v)
	}
	return fields
}

func (f Fields) Interface() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v.Interface()
	}
	return out
}

// Lookup resolves a dot separated path such as "pricing.total_jpy".
func (f Fields) Lookup(path string) (Value, bool) {
	current := f
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		value, ok := current[segment]
		if !ok {
			return Value{}, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		next, ok := value.AsMap()
		if !ok {
			return Value{}, false
		}
		current = next
	}
	return Value{}, false
}

// String returns the trimmed string at path, or "".
func (f Fields) String(path string) string {
	value, _ := f.Lookup(path)
	s, _ := value.AsString()
	return strings.TrimSpace(s)
}

func (f Fields) Int(path string) (int64, bool) {
	value, ok := f.Lookup(path)
	if !ok {
		return 0, false
	}
	return value.AsInt()
}

func (f Fields) Bool(path string) (bool, bool) {
	value, ok := f.Lookup(path)
	if !ok {
		return false, false
	}
	return value.AsBool()
}

func (f Fields) Time(path string) (time.Time, bool) {
	value, ok := f.Lookup(path)
	if !ok {
		return time.Time{}, false
	}
	return value.AsTime()
}

// Map returns the nested map at path, or nil.
func (f Fields) Map(path string) Fields {
	value, _ := f.Lookup(path)
	m, _ := value.AsMap()
	return m
}

// StringMap flattens a map of strings, skipping blank entries.
func (f Fields) StringMap(path string) map[string]string {
	nested := f.Map(path)
	out := make(map[string]string, len(nested))
	for k, v := range nested {
		if s, ok := v.AsString(); ok && strings.TrimSpace(s) != "" {
			out[k] = strings.TrimSpace(s)
		}
	}
	return out
}

// StringSlice returns the non-blank strings of an array field.
func (f Fields) StringSlice(path string) []string {
	value, _ := f.Lookup(path)
	items, _ := value.AsArray()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.AsString(); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Clone deep copies maps and arrays so callers may mutate the result.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.kind {
	case KindMap:
		return Map(v.m.Clone())
	case KindArray:
		items := make([]Value, len(v.a))
		for i, item := range v.a {
			items[i] = item.clone()
		}
		return Array(items...)
	default:
		return v
	}
}

// Set writes value at a dot separated path, creating intermediate maps.
func (f Fields) Set(path string, value Value) {
	segments := strings.Split(path, ".")
	current := f
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].AsMap()
		if !ok || next == nil {
			next = Fields{}
			current[segment] = Map(next)
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// compare orders two values of the same kind; mismatched kinds order by Kind.
func compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindInt:
		return cmpOrdered(a.i, b.i)
	case KindDouble:
		return cmpOrdered(a.f, b.f)
	case KindBool:
		return cmpOrdered(boolRank(a.b), boolRank(b.b))
	case KindTime:
		return a.t.Compare(b.t)
	default:
		return 0
	}
}

func equal(a, b Value) bool {
	if a.kind == KindMap || a.kind == KindArray {
		return false
	}
	return a.kind == b.kind && compare(a, b) == 0
}

func cmpOrdered[T int64 | float64 | int](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortedKeys returns the map keys in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
