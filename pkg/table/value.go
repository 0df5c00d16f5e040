package table

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the underlying type of a cell Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a single table cell. Cells are either null, a string, a number,
// or a boolean; anything richer (dates, times) travels as a string in the
// format the AMS API expects.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Null is the zero Value.
var Null = Value{}

// String returns a string-kinded Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a number-kinded Value.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Null
	}
	return Value{kind: KindNumber, num: f}
}

// Int returns a number-kinded Value from an integer.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i)}
}

// Bool returns a bool-kinded Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind reports the Value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether the Value is null or an empty string. The API
// treats both as "not provided".
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// String renders the Value as the string form sent to the API: numbers use
// their shortest decimal representation (integral floats drop the fraction),
// booleans render as "true"/"false", and null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Float returns the numeric form of the Value and whether one exists.
// String cells are parsed leniently so columns read from CSV still compare
// numerically.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int64 returns the integral form of the Value and whether one exists.
func (v Value) Int64() (int64, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Bool returns the boolean form of the Value and whether one exists.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindString:
		b, err := strconv.ParseBool(v.str)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// FromAny converts a decoded JSON scalar into a Value. Unknown types fall
// back to their string form.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null
	case string:
		return String(x)
	case float64:
		return Number(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case bool:
		return Bool(x)
	default:
		return String(stringify(x))
	}
}

func stringify(x any) string {
	b, err := json.Marshal(x)
	if err != nil {
		return ""
	}
	return string(b)
}
