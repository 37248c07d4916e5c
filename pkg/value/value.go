// Package value implements the tagged property value exchanged between
// elements, bindings and the toolkit adaptor.
//
// A Value holds exactly one of: a signed integer, a double, a boolean, a
// string, an RGBA colour, or an opaque toolkit handle. Values are totally
// ordered by kind first and payload second, so they can serve as effect
// dependencies and binding change detectors.
package value

import (
	"cmp"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"reflect"
	"strconv"
)

// Kind identifies the payload of a Value. The zero Kind is Invalid.
type Kind uint8

const (
	Invalid Kind = iota
	IntKind
	DoubleKind
	BoolKind
	StringKind
	ColorKind
	HandleKind
)

func (k Kind) String() string {
	switch k {
	case IntKind:
		return "int"
	case DoubleKind:
		return "double"
	case BoolKind:
		return "bool"
	case StringKind:
		return "string"
	case ColorKind:
		return "color"
	case HandleKind:
		return "handle"
	default:
		return "invalid"
	}
}

// Value is an immutable tagged property value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	c    Color
	h    any
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: IntKind, i: v} }

// Double returns a floating point value.
func Double(v float64) Value { return Value{kind: DoubleKind, f: v} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	if v {
		return Value{kind: BoolKind, i: 1}
	}
	return Value{kind: BoolKind}
}

// String returns a string value.
func String(v string) Value { return Value{kind: StringKind, s: v} }

// ColorOf returns a colour value.
func ColorOf(c Color) Value { return Value{kind: ColorKind, c: c} }

// Handle wraps an opaque toolkit-specific payload.
func Handle(h any) Value { return Value{kind: HandleKind, h: h} }

// Of converts a Go value. Integers, floats, booleans, strings, colours and
// json.Number map to their kinds; anything else becomes a Handle. A nil
// input yields the invalid Value.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case Value:
		return x
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return unsigned(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return unsigned(x)
	case float32:
		return Double(float64(x))
	case float64:
		return Double(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case Color:
		return ColorOf(x)
	case color.Color:
		return ColorOf(FromColor(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Double(f)
	default:
		return Handle(v)
	}
}

// unsigned keeps u exact as an Int when it fits and falls back to the
// nearest Double otherwise.
func unsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return Double(float64(u))
	}
	return Int(int64(u))
}

// Kind returns the payload kind.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a payload.
func (v Value) IsValid() bool { return v.kind != Invalid }

// IsNumber reports whether v is an Int or a Double.
func (v Value) IsNumber() bool { return v.kind == IntKind || v.kind == DoubleKind }

// AsInt returns the integer payload. Doubles are truncated.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case IntKind:
		return v.i, true
	case DoubleKind:
		return int64(v.f), true
	}
	return 0, false
}

// AsFloat returns the numeric payload as a float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case IntKind:
		return float64(v.i), true
	case DoubleKind:
		return v.f, true
	}
	return 0, false
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != BoolKind {
		return false, false
	}
	return v.i != 0, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != StringKind {
		return "", false
	}
	return v.s, true
}

// AsColor returns the colour payload.
func (v Value) AsColor() (Color, bool) {
	if v.kind != ColorKind {
		return Color{}, false
	}
	return v.c, true
}

// AsHandle returns the opaque payload.
func (v Value) AsHandle() (any, bool) {
	if v.kind != HandleKind {
		return nil, false
	}
	return v.h, true
}

// Truthy reports whether v counts as true for a guard: non-zero numbers,
// true, non-empty strings, and any colour or non-nil handle.
func (v Value) Truthy() bool {
	switch v.kind {
	case IntKind, BoolKind:
		return v.i != 0
	case DoubleKind:
		return v.f != 0 && !math.IsNaN(v.f)
	case StringKind:
		return v.s != ""
	case ColorKind:
		return true
	case HandleKind:
		return v.h != nil
	}
	return false
}

// Interface returns the payload as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case IntKind:
		return v.i
	case DoubleKind:
		return v.f
	case BoolKind:
		return v.i != 0
	case StringKind:
		return v.s
	case ColorKind:
		return v.c
	case HandleKind:
		return v.h
	}
	return nil
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case IntKind, BoolKind:
		return v.i == o.i
	case DoubleKind:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case StringKind:
		return v.s == o.s
	case ColorKind:
		return v.c == o.c
	case HandleKind:
		return reflect.DeepEqual(v.h, o.h)
	}
	return true
}

// Compare orders values by kind, then by payload. It returns -1, 0 or +1.
// Handles with different payloads are ordered by their formatted form.
func (v Value) Compare(o Value) int {
	if c := cmp.Compare(v.kind, o.kind); c != 0 {
		return c
	}
	switch v.kind {
	case IntKind, BoolKind:
		return cmp.Compare(v.i, o.i)
	case DoubleKind:
		return cmp.Compare(v.f, o.f)
	case StringKind:
		return cmp.Compare(v.s, o.s)
	case ColorKind:
		return cmp.Compare(v.c.packed(), o.c.packed())
	case HandleKind:
		if reflect.DeepEqual(v.h, o.h) {
			return 0
		}
		if c := cmp.Compare(fmt.Sprintf("%T", v.h), fmt.Sprintf("%T", o.h)); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(v.h), fmt.Sprint(o.h))
	}
	return 0
}

// String formats the payload the way it would be written into a text
// property.
func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case DoubleKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.i != 0)
	case StringKind:
		return v.s
	case ColorKind:
		return v.c.String()
	case HandleKind:
		return fmt.Sprint(v.h)
	}
	return ""
}

// GoString supports %#v.
func (v Value) GoString() string {
	if v.kind == StringKind {
		return fmt.Sprintf("value.String(%q)", v.s)
	}
	return fmt.Sprintf("value.%s(%s)", v.kind, v.String())
}
