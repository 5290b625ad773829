package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the serializable value types.
// Only Null, String, Int, Real, Bool, List and Object implement it.
type Value interface {
	irValue()
}

// Null is the explicit absent value.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value.
type String string

func (String) irValue() {}

// Int is an integer value.
type Int int64

func (Int) irValue() {}

// Real is a finite floating-point value. NaN and infinities are rejected by
// every encoder.
type Real float64

func (Real) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) irValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) irValue() {}

// Pair is a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is shorthand for Pair.
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject builds an Object from pairs. Later pairs win.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units), which
// differs from Go's byte-wise string order outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Float reads a numeric argument. A missing key yields def; an Int is
// widened.
func (obj Object) Float(key string, def float64) (float64, error) {
	v, ok := obj[key]
	if !ok {
		return def, nil
	}
	if f, ok := AsFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("argument %q: expected number, got %s", key, TypeName(v))
}

// Int reads an integer argument. A missing key yields def.
func (obj Object) Int(key string, def int64) (int64, error) {
	v, ok := obj[key]
	if !ok {
		return def, nil
	}
	switch v := v.(type) {
	case Int:
		return int64(v), nil
	case Real:
		if float64(v) == math.Trunc(float64(v)) {
			return int64(v), nil
		}
	}
	return 0, fmt.Errorf("argument %q: expected integer, got %s", key, TypeName(v))
}

// Str reads a string argument. A missing key yields def.
func (obj Object) Str(key, def string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return def, nil
	}
	if s, ok := v.(String); ok {
		return string(s), nil
	}
	return "", fmt.Errorf("argument %q: expected string, got %s", key, TypeName(v))
}

// AsFloat returns the numeric value of an Int or Real.
func AsFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	default:
		return 0, false
	}
}

// TypeName names the kind of v for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Real:
		return "real"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal reports deep equality. Int and Real never compare equal to each
// other, and a nil Value equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch a := a.(type) {
	case List:
		bl, ok := b.(List)
		return ok && slices.EqualFunc(a, bl, Equal)
	case Object:
		bo, ok := b.(Object)
		if !ok || len(a) != len(bo) {
			return false
		}
		for k, av := range a {
			bv, ok := bo[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Format renders v compactly for logs and traces. Unlike canonical JSON it
// never fails; non-finite reals print as Go does.
func Format(v Value) string {
	switch v := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(v))
	case Int:
		return fmt.Sprintf("%d", int64(v))
	case Real:
		return formatReal(float64(v))
	case Bool:
		return fmt.Sprintf("%t", bool(v))
	case List:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		keys := v.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Format(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FromAny converts a value produced by a generic decoder (encoding/json,
// yaml.v3, CUE) into a Value. Integral Go types become Int and floating
// types become Real.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return Int(val), nil
	case float32:
		return checkReal(float64(val))
	case float64:
		return checkReal(val)
	case json.Number:
		return numberValue(val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = e
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func checkReal(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite real: %v", f)
	}
	return Real(f), nil
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of range: %s", s)
		}
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number: %s", s)
	}
	return checkReal(f)
}

// ParseJSON decodes JSON into a Value. Numbers without a fraction or
// exponent become Int; all others become Real.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler with canonical key order.
func (obj Object) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(l)
}

// UnmarshalJSON implements json.Unmarshaler.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected object, got %s", TypeName(v))
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	list, ok := v.(List)
	if !ok {
		return fmt.Errorf("expected list, got %s", TypeName(v))
	}
	*l = list
	return nil
}
