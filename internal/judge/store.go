package judge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"sqljudge/internal/fixture"
	"sqljudge/internal/schema"
	"sqljudge/internal/value"
)

// Store is the live store handle the pipeline stages run against.
type Store interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Dialect() schema.Dialect
}

// Materialize creates every declared table, empty, in declaration order.
func Materialize(ctx context.Context, store Store, def schema.Definition) error {
	if err := def.Check(); err != nil {
		return &SchemaError{Err: err}
	}
	for _, tbl := range def.Tables {
		if _, err := store.ExecContext(ctx, tbl.CreateSQL(store.Dialect())); err != nil {
			return &SchemaError{Table: tbl.Name, Err: err}
		}
	}
	return nil
}

// Load inserts a fixture's input rows. Tables are filled in schema order so
// referenced tables come first; tables absent from the input stay empty.
// A value that does not fit its declared column type fails the row before
// it reaches the store.
func Load(ctx context.Context, store Store, def schema.Definition, data map[string][]fixture.Row) error {
	for _, name := range loadOrder(def, data) {
		tbl, _ := def.TableByName(name)
		for i, row := range data[name] {
			if err := checkRow(tbl, row); err != nil {
				return &LoadError{Table: name, Row: i, Err: err}
			}
			stmt, args := insertSQL(store.Dialect(), tbl, name, row)
			if _, err := store.ExecContext(ctx, stmt, args...); err != nil {
				return &LoadError{Table: name, Row: i, Err: err}
			}
		}
	}
	return nil
}

// checkRow leaves unknown columns to the store, which reports them itself.
func checkRow(tbl schema.Table, row fixture.Row) error {
	for _, c := range row {
		col, ok := tbl.ColumnByName(c.Column)
		if !ok {
			continue
		}
		if err := col.Type.CheckValue(c.Value); err != nil {
			return fmt.Errorf("column %s: %w", c.Column, err)
		}
	}
	return nil
}

func loadOrder(def schema.Definition, data map[string][]fixture.Row) []string {
	order := make([]string, 0, len(data))
	seen := make(map[string]struct{}, len(data))
	for _, tbl := range def.Tables {
		if rows, ok := data[tbl.Name]; ok && len(rows) > 0 {
			order = append(order, tbl.Name)
			seen[tbl.Name] = struct{}{}
		}
	}
	var rest []string
	for name, rows := range data {
		if _, ok := seen[name]; ok || len(rows) == 0 {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// argBinder is implemented by dialects that pass some values differently
// from their plain Go form.
type argBinder interface {
	BindArg(t schema.ColumnType, v value.Value) (placeholder string, args []any)
}

// insertSQL builds a parameterized insert using exactly the row's columns.
func insertSQL(dialect schema.Dialect, tbl schema.Table, table string, row fixture.Row) (string, []any) {
	if len(row) == 0 {
		if dialect != nil && dialect.Name() == "mysql" {
			return fmt.Sprintf("INSERT INTO %s () VALUES ()", table), nil
		}
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table), nil
	}
	binder, _ := dialect.(argBinder)
	cols := make([]string, len(row))
	marks := make([]string, len(row))
	args := make([]any, 0, len(row))
	for i, c := range row {
		cols[i] = c.Column
		if binder == nil {
			marks[i] = "?"
			args = append(args, c.Value.Interface())
			continue
		}
		col, _ := tbl.ColumnByName(c.Column)
		mark, cellArgs := binder.BindArg(col.Type, c.Value)
		marks[i] = mark
		args = append(args, cellArgs...)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", ")), args
}
