package schema

import (
	"fmt"
	"math"

	"sqljudge/internal/value"

	"github.com/shopspring/decimal"
)

var integerRanges = map[ColumnType][2]decimal.Decimal{
	TypeInteger: {decimal.NewFromInt(math.MinInt32), decimal.NewFromInt(math.MaxInt32)},
	TypeBigInt:  {decimal.NewFromInt(math.MinInt64), decimal.NewFromInt(math.MaxInt64)},
	TypeUBigInt: {decimal.Zero, decimal.RequireFromString("18446744073709551615")},
}

// IntegerRange returns the inclusive bounds of an integer column type.
func (t ColumnType) IntegerRange() (lo, hi decimal.Decimal, ok bool) {
	parsed, _ := ParseColumnType(string(t))
	r, ok := integerRanges[parsed]
	return r[0], r[1], ok
}

// CheckValue reports whether v can be stored in a column of type t.
// NULL fits every type; NOT NULL is enforced by the store.
func (t ColumnType) CheckValue(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	parsed, ok := ParseColumnType(string(t))
	if !ok {
		return nil
	}
	fits := false
	switch parsed {
	case TypeInteger, TypeBigInt, TypeUBigInt:
		n, numeric := v.Numeric()
		if numeric && n.IsInteger() {
			lo, hi, _ := parsed.IntegerRange()
			if n.LessThan(lo) || n.GreaterThan(hi) {
				return fmt.Errorf("value %s out of range for %s", v, parsed)
			}
			fits = true
		}
	case TypeReal:
		_, fits = v.Numeric()
	case TypeText:
		fits = v.Kind() == value.KindText
	case TypeDate:
		_, fits = v.AsDate()
	}
	if !fits {
		return fmt.Errorf("%s value %q does not fit %s", v.Kind(), v.String(), parsed)
	}
	return nil
}
