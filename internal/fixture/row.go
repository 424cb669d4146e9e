// Package fixture defines test fixtures and the ordered rows they carry.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sqljudge/internal/value"

	"gopkg.in/yaml.v3"
)

// Cell is one column of a row.
type Cell struct {
	Column string
	Value  value.Value
}

// Row is an ordered mapping from column name to value.
type Row []Cell

// Set assigns a column, replacing an existing cell with the same name.
func (r *Row) Set(column string, v value.Value) {
	for i := range *r {
		if (*r)[i].Column == column {
			(*r)[i].Value = v
			return
		}
	}
	*r = append(*r, Cell{Column: column, Value: v})
}

// Get returns the value stored under column.
func (r Row) Get(column string) (value.Value, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return value.Null(), false
}

// Columns returns the column names in row order.
func (r Row) Columns() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Column
	}
	return out
}

// Normalize returns a copy with every value normalized.
func (r Row) Normalize() Row {
	out := make(Row, len(r))
	for i, c := range r {
		out[i] = Cell{Column: c.Column, Value: value.Normalize(c.Value)}
	}
	return out
}

// Key renders a canonical key for the row: cells sorted by column name so the
// key ignores positional column order.
func (r Row) Key() string {
	cells := make([]Cell, len(r))
	copy(cells, r)
	sort.Slice(cells, func(i, j int) bool { return cells[i].Column < cells[j].Column })
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c.Column)
		b.WriteByte('=')
		b.WriteString(value.Key(c.Value))
	}
	return b.String()
}

// String renders the row as {a: 1, b: x} for logs.
func (r Row) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Column)
		b.WriteString(": ")
		b.WriteString(c.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// NormalizeRows normalizes every row of a result set.
func NormalizeRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Normalize()
	}
	return out
}

// MarshalJSON encodes the row as an object keeping column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := c.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order and exact numbers.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be an object, got %v", tok)
	}
	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		column, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string, got %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := value.Of(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", column, err)
		}
		row.Set(column, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// MarshalYAML encodes the row as a mapping keeping column order.
func (r Row) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range r {
		var val yaml.Node
		encoded, err := c.Value.MarshalYAML()
		if err != nil {
			return nil, err
		}
		if err := val.Encode(encoded); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.Column}, &val)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping keeping key order.
func (r *Row) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: row must be a mapping", node.Line)
	}
	row := Row{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		column := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return err
		}
		v, err := value.Of(raw)
		if err != nil {
			return fmt.Errorf("line %d: column %s: %w", node.Content[i].Line, column, err)
		}
		row.Set(column, v)
	}
	*r = row
	return nil
}
