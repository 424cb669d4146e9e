package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sqljudge/internal/value"
)

type upperDialect struct{}

func (upperDialect) Name() string { return "test" }

func (upperDialect) TypeName(t ColumnType) string {
	if t == TypeUBigInt {
		return "BIGINT UNSIGNED"
	}
	return string(t)
}

func TestCreateSQLOrdersConstraintsLast(t *testing.T) {
	tbl := Table{
		Name: "orders",
		Columns: []Column{
			{Name: "user_id", Type: TypeInteger},
			{Name: "PRIMARY KEY (user_id, item)"},
			{Name: "item", Type: TypeText, Constraints: "NOT NULL"},
			{Name: "qty", Type: TypeUBigInt},
		},
	}
	got := tbl.CreateSQL(nil)
	want := "CREATE TABLE orders (user_id INTEGER, item TEXT NOT NULL, qty UBIGINT, PRIMARY KEY (user_id, item))"
	if got != want {
		t.Fatalf("CreateSQL()=%q, want %q", got, want)
	}
	got = tbl.CreateSQL(upperDialect{})
	if !strings.Contains(got, "qty BIGINT UNSIGNED") {
		t.Fatalf("expected dialect type mapping, got %q", got)
	}
}

func TestParseColumnType(t *testing.T) {
	cases := []struct {
		in   string
		want ColumnType
		ok   bool
	}{
		{"integer", TypeInteger, true},
		{" Real ", TypeReal, true},
		{"UBIGINT", TypeUBigInt, true},
		{"VARCHAR", "VARCHAR", false},
	}
	for _, c := range cases {
		got, ok := ParseColumnType(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseColumnType(%q)=(%q,%v), want (%q,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDefinitionCheck(t *testing.T) {
	cases := []struct {
		name string
		def  Definition
		err  string
	}{
		{"ok", Definition{Tables: []Table{{Name: "t", Columns: []Column{{Name: "id", Type: TypeInteger}}}}}, ""},
		{"dup table", Definition{Tables: []Table{
			{Name: "t", Columns: []Column{{Name: "id", Type: TypeInteger}}},
			{Name: "T", Columns: []Column{{Name: "id", Type: TypeInteger}}},
		}}, "duplicate table"},
		{"dup column", Definition{Tables: []Table{{Name: "t", Columns: []Column{{Name: "id", Type: TypeInteger}, {Name: "ID", Type: TypeText}}}}}, "duplicate column"},
		{"bad type", Definition{Tables: []Table{{Name: "t", Columns: []Column{{Name: "id", Type: "BLOB"}}}}}, "unsupported type"},
		{"no columns", Definition{Tables: []Table{{Name: "t", Columns: []Column{{Name: "PRIMARY KEY (id)"}}}}}, "no columns"},
		{"no name", Definition{Tables: []Table{{Columns: []Column{{Name: "id", Type: TypeInteger}}}}}, "no name"},
	}
	for _, c := range cases {
		err := c.def.Check()
		if c.err == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", c.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), c.err) {
			t.Fatalf("%s: expected error containing %q, got %v", c.name, c.err, err)
		}
	}
}

func TestDefinitionDecode(t *testing.T) {
	src := `{"tables": [{"name": "t", "columns": [{"name": "id", "type": "INTEGER", "constraints": "PRIMARY KEY"}, {"name": "v", "type": "REAL"}]}]}`
	var def Definition
	if err := json.Unmarshal([]byte(src), &def); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tbl, ok := def.TableByName("t")
	if !ok {
		t.Fatalf("expected table t")
	}
	if col, ok := tbl.ColumnByName("id"); !ok || col.Constraints != "PRIMARY KEY" {
		t.Fatalf("unexpected id column: %+v", col)
	}
	stmts := def.CreateStatements(nil)
	if len(stmts) != 1 || stmts[0] != "CREATE TABLE t (id INTEGER PRIMARY KEY, v REAL)" {
		t.Fatalf("unexpected statements: %v", stmts)
	}
}

func TestCheckValue(t *testing.T) {
	day := time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)
	cases := []struct {
		typ  ColumnType
		v    value.Value
		want string
	}{
		{TypeInteger, value.Int(7), ""},
		{TypeInteger, value.Real(3.0), ""},
		{TypeInteger, value.Real(3.5), `real value "3.5" does not fit INTEGER`},
		{TypeInteger, value.Text("not-a-number"), `text value "not-a-number" does not fit INTEGER`},
		{TypeInteger, value.Int(1 << 31), "value 2147483648 out of range for INTEGER"},
		{"bigint", value.Uint(1 << 63), "value 9223372036854775808 out of range for BIGINT"},
		{TypeUBigInt, value.Uint(1<<64 - 1), ""},
		{TypeUBigInt, value.Int(-1), "value -1 out of range for UBIGINT"},
		{TypeReal, value.Int(2), ""},
		{TypeReal, value.Bool(true), `boolean value "true" does not fit REAL`},
		{TypeText, value.Text("x"), ""},
		{TypeText, value.Int(12345), `integer value "12345" does not fit TEXT`},
		{TypeDate, value.Text("2024-03-01"), ""},
		{TypeDate, value.Time(day), ""},
		{TypeDate, value.Text("garbage"), `text value "garbage" does not fit DATE`},
		{TypeDate, value.Null(), ""},
	}
	for _, c := range cases {
		err := c.typ.CheckValue(c.v)
		if c.want == "" {
			if err != nil {
				t.Fatalf("CheckValue(%s, %s) unexpected error: %v", c.typ, c.v, err)
			}
			continue
		}
		if err == nil || err.Error() != c.want {
			t.Fatalf("CheckValue(%s, %s) = %v, want %q", c.typ, c.v, err, c.want)
		}
	}
}
