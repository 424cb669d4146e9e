package db

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/marcboeker/go-duckdb"
	"github.com/mattn/go-sqlite3"
)

// Error classes reported by ClassifyError.
const (
	ClassSyntax        = "syntax"
	ClassUnknownColumn = "unknown_column"
	ClassUnknownTable  = "unknown_table"
	ClassTableExists   = "table_exists"
	ClassBadValue      = "bad_value"
	ClassConstraint    = "constraint"
	ClassTimeout       = "timeout"
	ClassStore         = "store"
)

// mysqlErrorClasses maps MySQL error numbers to classes.
// 1054 unknown column, 1146 unknown table, 1050 table exists,
// 1064/1149 syntax, 1264/1292/1366 out of range or truncated values,
// 1048/1062/1451/1452 null, duplicate key and foreign key failures.
var mysqlErrorClasses = map[uint16]string{
	1054: ClassUnknownColumn,
	1146: ClassUnknownTable,
	1050: ClassTableExists,
	1064: ClassSyntax,
	1149: ClassSyntax,
	1264: ClassBadValue,
	1292: ClassBadValue,
	1366: ClassBadValue,
	1048: ClassConstraint,
	1062: ClassConstraint,
	1451: ClassConstraint,
	1452: ClassConstraint,
}

// ClassifyError buckets a store error for logs and metrics. It never changes
// the error text shown to users.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if class, ok := mysqlErrorClasses[mysqlErr.Number]; ok {
			return class
		}
		return ClassStore
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrInterrupt {
			return ClassTimeout
		}
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return ClassConstraint
		}
		if sqliteErr.Code == sqlite3.ErrMismatch || sqliteErr.Code == sqlite3.ErrRange {
			return ClassBadValue
		}
	}
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		switch duckErr.Type {
		case duckdb.ErrorTypeParser:
			return ClassSyntax
		case duckdb.ErrorTypeConversion, duckdb.ErrorTypeOutOfRange:
			return ClassBadValue
		case duckdb.ErrorTypeConstraint:
			return ClassConstraint
		case duckdb.ErrorTypeInterrupt:
			return ClassTimeout
		}
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "syntax error"), strings.Contains(lower, "parser error"):
		return ClassSyntax
	case strings.Contains(lower, "no such column"), strings.Contains(lower, "unknown column"),
		strings.Contains(lower, "referenced column"), strings.Contains(lower, "does not have a column"):
		return ClassUnknownColumn
	case strings.Contains(lower, "no such table"), strings.Contains(lower, "doesn't exist"),
		strings.Contains(lower, "table with name") && strings.Contains(lower, "does not exist"):
		return ClassUnknownTable
	case strings.Contains(lower, "already exists"):
		return ClassTableExists
	case strings.Contains(lower, "interrupted"):
		return ClassTimeout
	default:
		return ClassStore
	}
}
