// Package value implements the scalar value model: the tagged union of
// types a Control Specification can compare, plus the operator vocabulary
// used across filters and assertions.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the concrete type carried by a Scalar.
type Kind string

const (
	KindString    Kind = "string"
	KindInt       Kind = "integer"
	KindFloat     Kind = "float"
	KindBool      Kind = "boolean"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
	KindNull      Kind = "null"
)

// Scalar is a tagged union over the value kinds a specification may carry
// as a literal. Null is represented explicitly via KindNull rather than a
// zero value, so a caller can never confuse "absent" with "compares to
// null".
type Scalar struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

func String(v string) Scalar    { return Scalar{kind: KindString, s: v} }
func Int(v int64) Scalar        { return Scalar{kind: KindInt, i: v} }
func Float(v float64) Scalar    { return Scalar{kind: KindFloat, f: v} }
func Bool(v bool) Scalar        { return Scalar{kind: KindBool, b: v} }
func Date(v time.Time) Scalar   { return Scalar{kind: KindDate, t: v} }
func Timestamp(v time.Time) Scalar {
	return Scalar{kind: KindTimestamp, t: v}
}
func Null() Scalar { return Scalar{kind: KindNull} }

func (s Scalar) Kind() Kind     { return s.kind }
func (s Scalar) IsNull() bool   { return s.kind == KindNull }
func (s Scalar) StringVal() string  { return s.s }
func (s Scalar) IntVal() int64      { return s.i }
func (s Scalar) FloatVal() float64  { return s.f }
func (s Scalar) BoolVal() bool      { return s.b }
func (s Scalar) TimeVal() time.Time { return s.t }

// IsString reports whether the scalar is string-kinded — used by the
// compiler to decide whether case/whitespace folding applies.
func (s Scalar) IsString() bool { return s.kind == KindString }

// scalarWire is the tagged JSON representation of a Scalar: {"kind": ...,
// "value": ...}. Dates and timestamps are carried as RFC 3339 strings.
type scalarWire struct {
	Kind  Kind        `json:"kind"`
	Value interface{} `json:"value,omitempty"`
}

// MarshalJSON renders the scalar as a tagged {kind, value} object so a
// Control Specification can round-trip through JSON without losing the
// kind discriminator (a bare JSON number can't tell integer from float,
// and a bare string can't tell date/timestamp from string).
func (s Scalar) MarshalJSON() ([]byte, error) {
	w := scalarWire{Kind: s.kind}
	switch s.kind {
	case KindString:
		w.Value = s.s
	case KindInt:
		w.Value = s.i
	case KindFloat:
		w.Value = s.f
	case KindBool:
		w.Value = s.b
	case KindDate:
		w.Value = s.t.Format("2006-01-02")
	case KindTimestamp:
		w.Value = s.t.Format(time.RFC3339)
	case KindNull:
		// Value omitted.
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the tagged {kind, value} representation produced by
// MarshalJSON.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var w struct {
		Kind  Kind            `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	switch w.Kind {
	case KindString:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid string scalar: %w", err)
		}
		*s = String(v)
	case KindInt:
		var v int64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid integer scalar: %w", err)
		}
		*s = Int(v)
	case KindFloat:
		var v float64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid float scalar: %w", err)
		}
		*s = Float(v)
	case KindBool:
		var v bool
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid boolean scalar: %w", err)
		}
		*s = Bool(v)
	case KindDate:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid date scalar: %w", err)
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return fmt.Errorf("value: invalid date scalar %q: %w", v, err)
		}
		*s = Date(t)
	case KindTimestamp:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return fmt.Errorf("value: invalid timestamp scalar: %w", err)
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("value: invalid timestamp scalar %q: %w", v, err)
		}
		*s = Timestamp(t)
	case KindNull:
		*s = Null()
	default:
		return fmt.Errorf("value: unknown scalar kind %q", w.Kind)
	}
	return nil
}

func (s Scalar) String() string {
	switch s.kind {
	case KindNull:
		return "NULL"
	case KindString:
		return s.s
	case KindInt:
		return fmt.Sprintf("%d", s.i)
	case KindFloat:
		return fmt.Sprintf("%v", s.f)
	case KindBool:
		return fmt.Sprintf("%t", s.b)
	case KindDate:
		return s.t.Format("2006-01-02")
	case KindTimestamp:
		return s.t.Format(time.RFC3339)
	default:
		return ""
	}
}
