package judge

import (
	"sort"

	"sqljudge/internal/fixture"
)

// Compare reports whether two result sets hold the same rows, ignoring row
// order and column order within a row. Both sides are normalized first.
func Compare(expected, actual []fixture.Row) bool {
	if len(expected) != len(actual) {
		return false
	}
	a := sortedKeys(expected)
	b := sortedKeys(actual)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys(rows []fixture.Row) []string {
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = row.Normalize().Key()
	}
	sort.Strings(keys)
	return keys
}
