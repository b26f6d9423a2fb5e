package models

import (
	"encoding/json"
	"fmt"
)

// valueKind discriminates the scalar variants an attribute can hold.
type valueKind int

// kindInvalid is the zero kind, so a zero Value (e.g. a missing map key)
// matches no variant.
const (
	kindInvalid valueKind = iota
	kindString
	kindNumber
	kindBool
)

// Value is an explicit scalar variant: string, number or bool. Footprint
// attributes (address, height, construction year, ...) are arbitrary
// key/value sets, but values are always scalars; arrays, objects and null
// are rejected at the JSON boundary.
type Value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
}

// String constructs a string attribute value.
func String(s string) Value {
	return Value{kind: kindString, str: s}
}

// Number constructs a numeric attribute value.
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Bool constructs a boolean attribute value.
func Bool(b bool) Value {
	return Value{kind: kindBool, b: b}
}

// AsString returns the string payload and whether the value holds one.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == kindString
}

// AsNumber returns the numeric payload and whether the value holds one.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == kindNumber
}

// AsBool returns the boolean payload and whether the value holds one.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == kindBool
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		return json.Marshal(v.str)
	case kindNumber:
		return json.Marshal(v.num)
	case kindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("unknown attribute value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler, accepting only scalar JSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case string:
		*v = String(val)
	case float64:
		*v = Number(val)
	case bool:
		*v = Bool(val)
	default:
		return fmt.Errorf("attribute values must be scalar, got %T", raw)
	}
	return nil
}

// Attributes maps attribute names to scalar values.
type Attributes map[string]Value

// Clone returns an independent copy of the mapping.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
