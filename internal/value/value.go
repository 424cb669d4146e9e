// Package value models the scalar cells that flow between fixtures and the store.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind int

// Value kinds. The set is closed; normalization is defined per kind.
const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindReal
	KindDecimal
	KindText
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindUint:
		return "unsigned"
	case KindReal:
		return "real"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindBool:
		return "boolean"
	case KindTime:
		return "temporal"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar. The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    bool
	t    time.Time
	d    decimal.Decimal

	dateOnly bool
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Int wraps a signed integer.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Uint wraps an unsigned integer. Values that fit int64 become Int.
func Uint(v uint64) Value {
	if v <= math.MaxInt64 {
		return Int(int64(v))
	}
	return Value{kind: KindUint, u: v}
}

// Real wraps a float.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Decimal wraps a fixed-point decimal.
func Decimal(v decimal.Decimal) Value { return Value{kind: KindDecimal, d: v} }

// Text wraps a string.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Time wraps a date or timestamp.
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Of converts a Go value as produced by JSON/YAML decoding or a database driver.
func Of(src any) (Value, error) {
	switch x := src.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(uint64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return Uint(x), nil
	case float32:
		return Real(float64(x)), nil
	case float64:
		return Real(x), nil
	case json.Number:
		return FromNumber(string(x))
	case decimal.Decimal:
		return Decimal(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(string(x)), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Time(x), nil
	case *big.Int:
		if x.IsInt64() {
			return Int(x.Int64()), nil
		}
		if x.IsUint64() {
			return Uint(x.Uint64()), nil
		}
		return Decimal(decimal.NewFromBigInt(x, 0)), nil
	default:
		return Value{}, fmt.Errorf("unsupported scalar type %T", src)
	}
}

// FromNumber parses a numeric literal, keeping integers exact.
func FromNumber(text string) (Value, error) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(i), nil
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return Uint(u), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q", text)
	}
	return Real(f), nil
}

// Numeric returns the exact numeric value of Int, Uint, Real and Decimal kinds.
func (v Value) Numeric() (decimal.Decimal, bool) {
	switch v.kind {
	case KindInt:
		return decimal.NewFromInt(v.i), true
	case KindUint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v.u), 0), true
	case KindReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v.f), true
	case KindDecimal:
		return v.d, true
	default:
		return decimal.Decimal{}, false
	}
}

// AsDate returns the calendar date held by a temporal value or by ISO date
// text (YYYY-MM-DD), at midnight UTC.
func (v Value) AsDate() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return Date(v.t).t, true
	case KindText:
		t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(v.s), time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Interface returns the Go value used as a driver argument or for encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindReal:
		return v.f
	case KindDecimal:
		return v.d.String()
	case KindText:
		return v.s
	case KindBool:
		return v.b
	case KindTime:
		if v.dateOnly {
			return v.timeText()
		}
		return v.t
	default:
		return nil
	}
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return v.d.String()
	case KindText:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.timeText()
	default:
		return "?"
	}
}

// MarshalJSON encodes the value as its natural JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt, KindUint:
		return []byte(v.String()), nil
	case KindReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.f)
	case KindDecimal:
		return []byte(v.d.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.String())
	}
}

// MarshalYAML encodes the value as its natural YAML scalar.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindDecimal, KindTime:
		return v.String(), nil
	default:
		return v.Interface(), nil
	}
}
