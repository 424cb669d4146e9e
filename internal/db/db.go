// Package db provides disposable store instances ("arenas") for evaluating
// one fixture each. Arenas are never pooled or reused.
package db

import (
	"context"
	"database/sql"

	"sqljudge/internal/config"
	"sqljudge/internal/schema"

	"github.com/pkg/errors"
)

// Opener creates fresh, empty arenas.
type Opener interface {
	Open(ctx context.Context) (*Arena, error)
	Dialect() schema.Dialect
	Close() error
}

// Arena is an exclusive, empty store handle. Close destroys it and all data in it.
type Arena struct {
	ID      string
	conn    *sql.Conn
	dialect schema.Dialect
	release func() error
	closed  bool
}

// Dialect returns the arena's SQL dialect.
func (a *Arena) Dialect() schema.Dialect {
	return a.dialect
}

// ExecContext runs a statement on the arena connection.
func (a *Arena) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the arena connection.
func (a *Arena) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.conn.QueryContext(ctx, query, args...)
}

// Close releases the connection and destroys the store. It is safe to call twice.
func (a *Arena) Close() error {
	if a == nil || a.closed {
		return nil
	}
	a.closed = true
	var firstErr error
	if a.conn != nil {
		firstErr = a.conn.Close()
	}
	if a.release != nil {
		if err := a.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewOpener builds the opener selected by the store configuration.
func NewOpener(cfg config.StoreConfig) (Opener, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return NewMySQLOpener(cfg.DSN, cfg.DatabasePrefix)
	case config.DriverSQLite:
		return NewSQLiteOpener(), nil
	case config.DriverDuckDB, "":
		return NewDuckDBOpener(), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}
