package fixture

import (
	"sort"
)

// Fixture pairs input rows per table with the rows a query is expected to return.
type Fixture struct {
	Name           string           `json:"name" yaml:"name"`
	InputData      map[string][]Row `json:"input_data" yaml:"input_data"`
	ExpectedOutput []Row            `json:"expected_output" yaml:"expected_output"`
}

// TableNames returns the tables referenced by the input data, sorted.
func (f Fixture) TableNames() []string {
	names := make([]string, 0, len(f.InputData))
	for name := range f.InputData {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RowCount returns the total number of input rows.
func (f Fixture) RowCount() int {
	total := 0
	for _, rows := range f.InputData {
		total += len(rows)
	}
	return total
}

// HasNull reports whether any input or expected cell is NULL.
func (f Fixture) HasNull() bool {
	for _, rows := range f.InputData {
		if rowsHaveNull(rows) {
			return true
		}
	}
	return rowsHaveNull(f.ExpectedOutput)
}

// RowsHaveNull reports whether any cell in rows is NULL.
func RowsHaveNull(rows []Row) bool {
	return rowsHaveNull(rows)
}

func rowsHaveNull(rows []Row) bool {
	for _, row := range rows {
		for _, c := range row {
			if c.Value.IsNull() {
				return true
			}
		}
	}
	return false
}
