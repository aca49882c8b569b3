package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ScalarKind defines the JSON shape of a scalar value.
type ScalarKind uint8

const (
	ScalarNull ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarFloat
	ScalarString
)

// ErrNotScalar is returned for arrays, objects and other non-leaf values.
var ErrNotScalar = errors.New("value is not a scalar")

// Scalar is a loosely-typed JSON leaf: null, bool, number or string.
// The zero value is null.
type Scalar struct {
	kind ScalarKind
	b    bool
	i    int64
	f    float64
	s    string
}

func Null() Scalar           { return Scalar{} }
func Bool(b bool) Scalar     { return Scalar{kind: ScalarBool, b: b} }
func Int(i int64) Scalar     { return Scalar{kind: ScalarInt, i: i} }
func Float(f float64) Scalar { return Scalar{kind: ScalarFloat, f: f} }
func String(s string) Scalar { return Scalar{kind: ScalarString, s: s} }

func (v Scalar) Kind() ScalarKind { return v.kind }

func (v Scalar) IsNull() bool   { return v.kind == ScalarNull }
func (v Scalar) IsNumber() bool { return v.kind == ScalarInt || v.kind == ScalarFloat }

// AsBool reports the bool value; non-bool scalars read as false.
func (v Scalar) AsBool() bool { return v.kind == ScalarBool && v.b }

// AsInt returns the integer value of an Int scalar.
func (v Scalar) AsInt() (int64, bool) { return v.i, v.kind == ScalarInt }

// AsFloat returns the numeric value of an Int or Float scalar.
func (v Scalar) AsFloat() (float64, bool) {
	switch v.kind {
	case ScalarInt:
		return float64(v.i), true
	case ScalarFloat:
		return v.f, true
	}
	return 0, false
}

// AsString returns the value of a String scalar.
func (v Scalar) AsString() (string, bool) { return v.s, v.kind == ScalarString }

func (v Scalar) String() string {
	switch v.kind {
	case ScalarBool:
		return strconv.FormatBool(v.b)
	case ScalarInt:
		return strconv.FormatInt(v.i, 10)
	case ScalarFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ScalarString:
		return strconv.Quote(v.s)
	default:
		return "null"
	}
}

// MarshalJSON writes the scalar back in its JSON form.
func (v Scalar) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ScalarBool:
		return json.Marshal(v.b)
	case ScalarInt:
		return json.Marshal(v.i)
	case ScalarFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
		return json.Marshal(v.f)
	case ScalarString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reads a scalar, keeping the integer/float distinction.
func (v *Scalar) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	s, err := ScalarFromJSON(raw)
	if err != nil {
		return err
	}
	*v = s
	return nil
}

// ScalarFromJSON converts a decoded JSON leaf into a Scalar.
// json.Number values that fit int64 become Int, the rest Float.
func ScalarFromJSON(raw any) (Scalar, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Scalar{}, fmt.Errorf("number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	case float32:
		return ScalarFromJSON(float64(t))
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	default:
		return Scalar{}, fmt.Errorf("%T: %w", raw, ErrNotScalar)
	}
}
