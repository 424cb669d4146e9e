package value

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// RoundScale is the number of fractional digits kept for non-integral numbers.
const RoundScale = 6

const (
	minInt64Float  = -9223372036854775808.0
	maxInt64Float  = 9223372036854775808.0
	maxUint64Float = 18446744073709551616.0
)

// Date wraps a calendar date; it renders without a clock part.
func Date(v time.Time) Value {
	y, m, d := v.Date()
	return Value{kind: KindTime, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), dateOnly: true}
}

var (
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
)

// Normalize canonicalizes representation so that equal results compare equal:
// temporal values become ISO-8601 text, decimals and floats become integers
// when integral and are otherwise rounded to RoundScale digits.
func Normalize(v Value) Value {
	switch v.kind {
	case KindTime:
		return Text(v.timeText())
	case KindDecimal:
		if v.d.IsInteger() && v.d.Cmp(maxInt64Decimal) <= 0 && v.d.Cmp(minInt64Decimal) >= 0 {
			return Int(v.d.IntPart())
		}
		f, _ := v.d.Float64()
		return normalizeFloat(f)
	case KindReal:
		return normalizeFloat(v.f)
	default:
		return v
	}
}

func normalizeFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Real(f)
	}
	if f == math.Trunc(f) {
		switch {
		case f >= minInt64Float && f < maxInt64Float:
			return Int(int64(f))
		case f >= 0 && f < maxUint64Float:
			return Uint(uint64(f))
		default:
			return Real(f)
		}
	}
	scale := math.Pow10(RoundScale)
	rounded := math.Round(f*scale) / scale
	if rounded == math.Trunc(rounded) {
		return Int(int64(rounded))
	}
	return Real(rounded)
}

func (v Value) timeText() string {
	if v.dateOnly {
		return v.t.Format(time.DateOnly)
	}
	return isoFormat(v.t)
}

func isoFormat(t time.Time) string {
	out := t.Format("2006-01-02T15:04:05")
	if ns := t.Nanosecond(); ns != 0 {
		out += fmt.Sprintf(".%06d", ns/int(time.Microsecond))
	}
	if _, offset := t.Zone(); offset != 0 {
		out += t.Format("-07:00")
	}
	return out
}

// Key renders a canonical comparison key. Numeric kinds share one namespace
// (booleans count as 0/1), text is quoted, so Key(a) == Key(b) iff a and b
// denote the same scalar.
func Key(v Value) string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return "n:" + strconv.FormatInt(v.i, 10)
	case KindUint:
		return "n:" + strconv.FormatUint(v.u, 10)
	case KindReal:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return "n:" + strconv.FormatFloat(v.f, 'f', 0, 64)
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return "n:" + v.d.String()
	case KindBool:
		if v.b {
			return "n:1"
		}
		return "n:0"
	case KindText:
		return "s:" + strconv.Quote(v.s)
	case KindTime:
		return "s:" + strconv.Quote(v.timeText())
	default:
		return "?"
	}
}

// Equal reports whether two values denote the same scalar.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}
