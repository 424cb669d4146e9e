package challenge

import (
	"sort"
	"strings"

	"sqljudge/internal/fixture"
	"sqljudge/internal/schema"

	"github.com/pkg/errors"
)

// Validate checks the structure of a challenge without running anything:
// required fields, at least minFixtures test cases, no NULL cells, input
// columns declared by the schema, integer values inside their column range and
// every value storable in its column type.
func (c Challenge) Validate(minFixtures int) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return errors.New("missing title")
	case strings.TrimSpace(c.Description) == "":
		return errors.New("missing description")
	case strings.TrimSpace(c.SolutionQuery) == "":
		return errors.New("missing solution_query")
	case !c.Schema.HasTables():
		return errors.New("schema_definition declares no tables")
	}
	if err := c.Schema.Check(); err != nil {
		return errors.Wrap(err, "schema_definition")
	}
	if len(c.TestCases) < minFixtures {
		return errors.Errorf("not enough test cases: %d/%d", len(c.TestCases), minFixtures)
	}
	for _, tc := range c.TestCases {
		if tc.HasNull() {
			return errors.Errorf("test case %s contains NULL values", tc.Name)
		}
	}
	for _, rows := range c.SampleData {
		if fixture.RowsHaveNull(rows) {
			return errors.New("sample data contains NULL values")
		}
	}
	for _, tc := range c.TestCases {
		if err := checkInput(c.Schema, tc.InputData); err != nil {
			return errors.Wrapf(err, "test case %s", tc.Name)
		}
	}
	if err := checkInput(c.Schema, c.SampleData); err != nil {
		return errors.Wrap(err, "sample data")
	}
	return nil
}

func checkInput(def schema.Definition, data map[string][]fixture.Row) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows := data[name]
		if len(rows) == 0 {
			continue
		}
		tbl, ok := def.TableByName(name)
		if !ok {
			return errors.Errorf("unknown table %s", name)
		}
		for _, row := range rows {
			var extra []string
			for _, cell := range row {
				col, ok := tbl.ColumnByName(cell.Column)
				if !ok {
					extra = append(extra, cell.Column)
					continue
				}
				if err := checkRange(col, cell); err != nil {
					return errors.Wrapf(err, "table %s", name)
				}
				if err := col.Type.CheckValue(cell.Value); err != nil {
					return errors.Wrapf(err, "table %s column %s", name, col.Name)
				}
			}
			if len(extra) > 0 {
				sort.Strings(extra)
				return errors.Errorf("extra columns in table %s: %s", name, strings.Join(extra, ", "))
			}
		}
	}
	return nil
}

func checkRange(col schema.Column, cell fixture.Cell) error {
	typ, _ := schema.ParseColumnType(string(col.Type))
	lo, hi, ok := typ.IntegerRange()
	if !ok {
		return nil
	}
	n, ok := cell.Value.Numeric()
	if !ok {
		return nil
	}
	if n.LessThan(lo) || n.GreaterThan(hi) {
		return errors.Errorf("overflow for %s column %s: %s", typ, col.Name, cell.Value)
	}
	return nil
}
