// Package schema defines declared table schemas and renders their DDL.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType enumerates the declarable column types.
type ColumnType string

// Column type constants accepted in schema definitions.
const (
	TypeInteger ColumnType = "INTEGER"
	TypeBigInt  ColumnType = "BIGINT"
	TypeUBigInt ColumnType = "UBIGINT"
	TypeText    ColumnType = "TEXT"
	TypeReal    ColumnType = "REAL"
	TypeDate    ColumnType = "DATE"
)

// ColumnTypes lists every declarable type.
var ColumnTypes = []ColumnType{TypeInteger, TypeBigInt, TypeUBigInt, TypeText, TypeReal, TypeDate}

// ParseColumnType resolves a type name case-insensitively.
func ParseColumnType(name string) (ColumnType, bool) {
	upper := ColumnType(strings.ToUpper(strings.TrimSpace(name)))
	for _, t := range ColumnTypes {
		if t == upper {
			return t, true
		}
	}
	return upper, false
}

// Valid reports whether t is one of the declarable types.
func (t ColumnType) Valid() bool {
	_, ok := ParseColumnType(string(t))
	return ok
}

// IsInteger reports whether values of t are integers.
func (t ColumnType) IsInteger() bool {
	switch t {
	case TypeInteger, TypeBigInt, TypeUBigInt:
		return true
	default:
		return false
	}
}

// Column describes a table column. A Column without a Type is a table-level
// constraint clause whose text is Name (for example a composite primary key).
type Column struct {
	Name        string     `json:"name" yaml:"name"`
	Type        ColumnType `json:"type,omitempty" yaml:"type,omitempty"`
	Constraints string     `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// IsConstraint reports whether the entry is a table-level constraint.
func (c Column) IsConstraint() bool {
	return strings.TrimSpace(string(c.Type)) == ""
}

// Table describes a declared table.
type Table struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// Definition is an ordered set of tables.
type Definition struct {
	Tables []Table `json:"tables" yaml:"tables"`
}

// Dialect maps declared types to the type names a store understands.
type Dialect interface {
	Name() string
	TypeName(t ColumnType) string
}

// ColumnByName returns a typed column by name if present.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.IsConstraint() {
			continue
		}
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// TableByName returns a table by name if present.
func (d Definition) TableByName(name string) (Table, bool) {
	for _, tbl := range d.Tables {
		if tbl.Name == name {
			return tbl, true
		}
	}
	return Table{}, false
}

// HasTables reports whether any tables are declared.
func (d Definition) HasTables() bool {
	return len(d.Tables) > 0
}

// Check validates naming and types without touching a store.
func (d Definition) Check() error {
	seen := make(map[string]struct{}, len(d.Tables))
	for i, tbl := range d.Tables {
		if strings.TrimSpace(tbl.Name) == "" {
			return fmt.Errorf("table #%d has no name", i+1)
		}
		key := strings.ToLower(tbl.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate table %s", tbl.Name)
		}
		seen[key] = struct{}{}
		if err := tbl.Check(); err != nil {
			return err
		}
	}
	return nil
}

// Check validates column names and types of one table.
func (t Table) Check() error {
	cols := make(map[string]struct{}, len(t.Columns))
	data := 0
	for _, col := range t.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("table %s: column without name", t.Name)
		}
		if col.IsConstraint() {
			continue
		}
		data++
		if !col.Type.Valid() {
			return fmt.Errorf("table %s: column %s has unsupported type %s", t.Name, col.Name, col.Type)
		}
		key := strings.ToLower(col.Name)
		if _, ok := cols[key]; ok {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, col.Name)
		}
		cols[key] = struct{}{}
	}
	if data == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	return nil
}

// CreateSQL renders the CREATE TABLE statement: column clauses first, then
// table-level constraint clauses verbatim.
func (t Table) CreateSQL(dialect Dialect) string {
	defs := make([]string, 0, len(t.Columns))
	var constraints []string
	for _, col := range t.Columns {
		if col.IsConstraint() {
			constraints = append(constraints, col.Name)
			continue
		}
		typeName := string(col.Type)
		if dialect != nil {
			if parsed, ok := ParseColumnType(typeName); ok {
				typeName = dialect.TypeName(parsed)
			}
		}
		def := col.Name + " " + typeName
		if c := strings.TrimSpace(col.Constraints); c != "" {
			def += " " + c
		}
		defs = append(defs, def)
	}
	defs = append(defs, constraints...)
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(defs, ", "))
}

// CreateStatements renders one CREATE TABLE per declared table, in order.
func (d Definition) CreateStatements(dialect Dialect) []string {
	out := make([]string, 0, len(d.Tables))
	for _, tbl := range d.Tables {
		out = append(out, tbl.CreateSQL(dialect))
	}
	return out
}
