package db

import (
	"context"
	"database/sql"

	"sqljudge/internal/schema"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Register the sqlite3 driver.
	"github.com/pkg/errors"
)

// sqliteMemoryDSN opens a private in-memory database with foreign keys enforced.
const sqliteMemoryDSN = ":memory:?_foreign_keys=1"

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

// TypeName keeps declared names: sqlite derives affinity from them and the
// driver uses the declared name to decode DATE columns.
func (sqliteDialect) TypeName(t schema.ColumnType) string {
	return string(t)
}

// SQLiteOpener opens one in-process in-memory database per arena.
type SQLiteOpener struct{}

// NewSQLiteOpener returns an opener for in-memory sqlite arenas.
func NewSQLiteOpener() *SQLiteOpener {
	return &SQLiteOpener{}
}

// Dialect implements Opener.
func (o *SQLiteOpener) Dialect() schema.Dialect {
	return sqliteDialect{}
}

// Open implements Opener. Every call creates a separate database: the pool is
// capped at one connection because each sqlite memory connection is its own database.
func (o *SQLiteOpener) Open(ctx context.Context) (*Arena, error) {
	handle, err := sql.Open("sqlite3", sqliteMemoryDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite arena")
	}
	handle.SetMaxOpenConns(1)
	conn, err := handle.Conn(ctx)
	if err != nil {
		_ = handle.Close()
		return nil, errors.Wrap(err, "connect sqlite arena")
	}
	return &Arena{
		ID:      uuid.NewString(),
		conn:    conn,
		dialect: sqliteDialect{},
		release: handle.Close,
	}, nil
}

// Close implements Opener.
func (o *SQLiteOpener) Close() error {
	return nil
}
