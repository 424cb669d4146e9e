package db

import (
	"context"
	"database/sql"

	"sqljudge/internal/schema"
	"sqljudge/internal/value"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
)

type duckdbDialect struct{}

func (duckdbDialect) Name() string { return "duckdb" }

// TypeName maps REAL to DOUBLE: REAL is a 4-byte float in DuckDB.
func (duckdbDialect) TypeName(t schema.ColumnType) string {
	parsed, _ := schema.ParseColumnType(string(t))
	switch parsed {
	case schema.TypeText:
		return "VARCHAR"
	case schema.TypeReal:
		return "DOUBLE"
	default:
		return string(parsed)
	}
}

// BindArg spells unsigned values above MaxInt64 inline, since database/sql
// refuses uint64 arguments with the high bit set, and passes DATE cells as
// time.Time.
func (duckdbDialect) BindArg(t schema.ColumnType, v value.Value) (string, []any) {
	if v.Kind() == value.KindUint {
		return v.String(), nil
	}
	if parsed, _ := schema.ParseColumnType(string(t)); parsed == schema.TypeDate {
		if d, ok := v.AsDate(); ok {
			return "?", []any{d}
		}
	}
	return "?", []any{v.Interface()}
}

// DuckDBOpener opens one in-process in-memory DuckDB database per arena.
type DuckDBOpener struct{}

// NewDuckDBOpener returns an opener for in-memory DuckDB arenas.
func NewDuckDBOpener() *DuckDBOpener {
	return &DuckDBOpener{}
}

// Dialect implements Opener.
func (o *DuckDBOpener) Dialect() schema.Dialect {
	return duckdbDialect{}
}

// Open implements Opener. Each connector owns a private database; closing the
// handle closes the connector and frees it.
func (o *DuckDBOpener) Open(ctx context.Context) (*Arena, error) {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb arena")
	}
	handle := sql.OpenDB(connector)
	handle.SetMaxOpenConns(1)
	conn, err := handle.Conn(ctx)
	if err != nil {
		_ = handle.Close()
		return nil, errors.Wrap(err, "connect duckdb arena")
	}
	return &Arena{
		ID:      uuid.NewString(),
		conn:    conn,
		dialect: duckdbDialect{},
		release: handle.Close,
	}, nil
}

// Close implements Opener.
func (o *DuckDBOpener) Close() error {
	return nil
}
