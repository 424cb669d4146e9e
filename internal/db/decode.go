package db

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"sqljudge/internal/value"

	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
}

// DecodeColumn converts a scanned driver value into a Value using the column's
// database type name. Text-protocol drivers hand back bytes for numbers and
// decimals; those are parsed by type, falling back to text when they do not parse.
func DecodeColumn(dbType string, raw any) (value.Value, error) {
	typ := strings.ToUpper(strings.TrimSpace(dbType))
	switch x := raw.(type) {
	case nil:
		return value.Null(), nil
	case []byte:
		return decodeText(typ, string(x)), nil
	case string:
		return decodeText(typ, x), nil
	case time.Time:
		if typ == "DATE" {
			return value.Date(x), nil
		}
		return value.Time(x), nil
	case duckdb.Decimal:
		if x.Value == nil {
			return value.Null(), nil
		}
		return value.Decimal(decimal.NewFromBigInt(x.Value, -int32(x.Scale))), nil
	default:
		return value.Of(raw)
	}
}

func decodeText(typ string, s string) value.Value {
	switch {
	case strings.Contains(typ, "DECIMAL") || typ == "NUMERIC":
		if d, err := decimal.NewFromString(s); err == nil {
			return value.Decimal(d)
		}
	case strings.Contains(typ, "INT") && strings.Contains(typ, "UNSIGNED"):
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return value.Uint(u)
		}
	case strings.Contains(typ, "INT") || typ == "YEAR":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.Int(i)
		}
	case typ == "FLOAT" || typ == "DOUBLE" || typ == "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Real(f)
		}
	case typ == "DATE":
		if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
			return value.Date(t)
		}
	case typ == "DATETIME" || typ == "TIMESTAMP":
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return value.Time(t)
			}
		}
	}
	return value.Text(s)
}

// ScanRows drains rows into column names and decoded values.
func ScanRows(rows *sql.Rows) ([]string, [][]value.Value, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	types := make([]string, len(cols))
	if colTypes, err := rows.ColumnTypes(); err == nil && len(colTypes) == len(cols) {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}
	raw := make([]any, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range raw {
		scanArgs[i] = &raw[i]
	}
	out := make([][]value.Value, 0)
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, err
		}
		vals := make([]value.Value, len(cols))
		for i := range raw {
			v, err := DecodeColumn(types[i], raw[i])
			if err != nil {
				return nil, nil, err
			}
			vals[i] = v
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}
