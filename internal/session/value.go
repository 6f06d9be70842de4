package session

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the shape carried by a Value.
type Kind int

const (
	// KindInvalid marks a value whose JSON shape no field rule accepts
	// (objects, mixed arrays, arrays of strings).
	KindInvalid Kind = iota
	KindNumber
	KindString
	KindBool
	KindNumbers
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindNumbers:
		return "number array"
	default:
		return "invalid"
	}
}

// Value is a single metadata field value. The zero Value is KindInvalid.
type Value struct {
	kind     Kind
	num      float64
	integral bool
	str      string
	flag     bool
	nums     []float64
	raw      any
}

// Number returns a non-integral numeric value (a JSON number written with a
// fraction or exponent).
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Int returns an integral numeric value.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: float64(i), integral: true}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// Numbers returns a numeric sequence value. The slice is copied.
func Numbers(values ...float64) Value {
	cp := make([]float64, len(values))
	copy(cp, values)
	return Value{kind: KindNumbers, nums: cp}
}

// Invalid wraps an unsupported decoded JSON value.
func Invalid(raw any) Value {
	return Value{kind: KindInvalid, raw: raw}
}

// Kind reports the value's shape.
func (v Value) Kind() Kind { return v.kind }

// Float returns the scalar number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Integral reports whether the value is a number decoded or produced as an integer.
func (v Value) Integral() bool {
	return v.kind == KindNumber && v.integral
}

// Text returns the string payload.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Truth returns the boolean payload.
func (v Value) Truth() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// Floats returns a copy of the numeric sequence.
func (v Value) Floats() ([]float64, bool) {
	if v.kind != KindNumbers {
		return nil, false
	}
	cp := make([]float64, len(v.nums))
	copy(cp, v.nums)
	return cp, true
}

// Len returns the sequence length, or 0 for non-sequences.
func (v Value) Len() int {
	if v.kind != KindNumbers {
		return 0
	}
	return len(v.nums)
}

// Unwrap turns a one-element sequence into a scalar number. Other values are
// returned unchanged.
func (v Value) Unwrap() Value {
	if v.kind == KindNumbers && len(v.nums) == 1 {
		return numberFromFloat(v.nums[0])
	}
	return v
}

// Key returns a canonical string used for equality and frequency counting.
// Values of different kinds never share a key.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + FormatNumber(v.num)
	case KindString:
		return "s:" + v.str
	case KindBool:
		return "b:" + strconv.FormatBool(v.flag)
	case KindNumbers:
		return "a:" + v.String()
	default:
		data, err := json.Marshal(v.raw)
		if err != nil {
			return "x:" + fmt.Sprint(v.raw)
		}
		return "x:" + string(data)
	}
}

// Equal reports whether two values carry the same payload.
func (v Value) Equal(other Value) bool {
	return v.Key() == other.Key()
}

// String renders the value for messages and reports.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindNumbers:
		parts := make([]string, len(v.nums))
		for i, n := range v.nums {
			parts[i] = FormatNumber(n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		if v.raw == nil {
			return "null"
		}
		data, err := json.Marshal(v.raw)
		if err != nil {
			return fmt.Sprint(v.raw)
		}
		return string(data)
	}
}

// MarshalJSON emits the natural JSON form of the value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(FormatNumber(v.num)), nil
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.flag)
	case KindNumbers:
		if v.nums == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.nums)
	default:
		return json.Marshal(v.raw)
	}
}

// UnmarshalJSON decodes any JSON document into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeAny(data)
	if err != nil {
		return err
	}
	*v = FromJSON(decoded)
	return nil
}

// FromJSON converts a value produced by a json.Decoder with UseNumber enabled.
// Plain float64 values are accepted too.
func FromJSON(raw any) Value {
	switch typed := raw.(type) {
	case json.Number:
		return fromJSONNumber(typed)
	case float64:
		return numberFromFloat(typed)
	case int:
		return Int(int64(typed))
	case int64:
		return Int(typed)
	case string:
		return String(typed)
	case bool:
		return Bool(typed)
	case []any:
		nums := make([]float64, 0, len(typed))
		for _, elem := range typed {
			switch n := elem.(type) {
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return Invalid(raw)
				}
				nums = append(nums, f)
			case float64:
				nums = append(nums, n)
			default:
				return Invalid(raw)
			}
		}
		return Value{kind: KindNumbers, nums: nums}
	default:
		return Invalid(raw)
	}
}

func fromJSONNumber(n json.Number) Value {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return Int(i)
	}
	f, err := n.Float64()
	if err != nil {
		return Invalid(n.String())
	}
	return Number(f)
}

// numberFromFloat keeps integral values integral, which matters after
// arithmetic such as unit conversion.
func numberFromFloat(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return Value{kind: KindNumber, num: f, integral: true}
	}
	return Number(f)
}

// Whole returns a numeric Value, marking it integral when f has no
// fractional part.
func Whole(f float64) Value {
	return numberFromFloat(f)
}

// FormatNumber renders a float without trailing zeros or exponent noise.
func FormatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
