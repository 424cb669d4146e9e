package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sqljudge/internal/config"
	"sqljudge/internal/schema"
	"sqljudge/internal/util"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// dropTimeout bounds arena teardown; it runs on a fresh context so a cancelled
// evaluation still drops its database.
const dropTimeout = 30 * time.Second

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) TypeName(t schema.ColumnType) string {
	switch t {
	case schema.TypeInteger:
		return "INT"
	case schema.TypeBigInt:
		return "BIGINT"
	case schema.TypeUBigInt:
		return "BIGINT UNSIGNED"
	case schema.TypeText:
		return "VARCHAR(255)"
	case schema.TypeReal:
		return "DOUBLE"
	case schema.TypeDate:
		return "DATE"
	default:
		return string(t)
	}
}

// MySQLOpener creates one database per arena on a MySQL-compatible server
// (MySQL, TiDB) and drops it when the arena closes.
type MySQLOpener struct {
	dsn    string
	prefix string
	admin  *sql.DB
}

// NewMySQLOpener connects to the server named by dsn.
func NewMySQLOpener(dsn string, prefix string) (*MySQLOpener, error) {
	adminDSN, err := withParseTime(config.AdminDSN(dsn))
	if err != nil {
		return nil, err
	}
	admin, err := sql.Open("mysql", adminDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	return &MySQLOpener{dsn: adminDSN, prefix: prefix, admin: admin}, nil
}

// Dialect implements Opener.
func (o *MySQLOpener) Dialect() schema.Dialect {
	return mysqlDialect{}
}

// Open implements Opener.
func (o *MySQLOpener) Open(ctx context.Context) (*Arena, error) {
	id := uuid.New()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7
	}
	name := arenaDatabaseName(o.prefix, id)
	if _, err := o.admin.ExecContext(ctx, "CREATE DATABASE "+quoteIdent(name)); err != nil {
		return nil, errors.Wrapf(err, "create arena database %s", name)
	}
	drop := func() error {
		dctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
		defer cancel()
		_, err := o.admin.ExecContext(dctx, "DROP DATABASE IF EXISTS "+quoteIdent(name))
		return err
	}
	handle, err := sql.Open("mysql", config.UpdateDatabaseInDSN(o.dsn, name))
	if err != nil {
		_ = drop()
		return nil, errors.Wrap(err, "open arena")
	}
	handle.SetMaxOpenConns(1)
	conn, err := handle.Conn(ctx)
	if err != nil {
		util.CloseWithErr(handle, "arena handle")
		_ = drop()
		return nil, errors.Wrap(err, "connect arena")
	}
	return &Arena{
		ID:      id.String(),
		conn:    conn,
		dialect: mysqlDialect{},
		release: func() error {
			closeErr := handle.Close()
			if err := drop(); err != nil {
				return err
			}
			return closeErr
		},
	}, nil
}

// Close implements Opener.
func (o *MySQLOpener) Close() error {
	return o.admin.Close()
}

func arenaDatabaseName(prefix string, id uuid.UUID) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id.String(), "-", ""))
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// withParseTime makes DATE/DATETIME columns decode as time.Time.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}
