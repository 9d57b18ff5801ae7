package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tells which member of a Value is set
type ValueKind int

const (
	KindNone ValueKind = iota
	KindNumber
	KindVector
	KindString
)

// Vec2 is a two component vector used for position and scale
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Value is a property or keyframe value. On the wire it is a JSON number,
// an {"x","y"} object or a string (colors, font names, alignment).
type Value struct {
	Kind ValueKind
	Num  float64
	Vec  Vec2
	Str  string
}

func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

func Vector(x, y float64) Value { return Value{Kind: KindVector, Vec: Vec2{X: x, Y: y}} }

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func (v Value) IsNumber() bool { return v.Kind == KindNumber }

func (v Value) IsVector() bool { return v.Kind == KindVector }

func (v Value) IsString() bool { return v.Kind == KindString }

// String renders the value for logs and error messages
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindVector:
		return fmt.Sprintf("{%g,%g}", v.Vec.X, v.Vec.Y)
	case KindString:
		return v.Str
	}
	return "<none>"
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindVector:
		return json.Marshal(v.Vec)
	case KindString:
		return json.Marshal(v.Str)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{':
		var vec Vec2
		if err := json.Unmarshal(data, &vec); err != nil {
			return err
		}
		*v = Value{Kind: KindVector, Vec: vec}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: %w", string(data), err)
		}
		*v = Number(n)
	}
	return nil
}

// Properties maps property names to values
type Properties map[string]Value

// Clone returns an independent copy
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
