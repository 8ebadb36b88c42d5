package scene

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Column is one named column of a Table
type Column struct {
	Name        string
	Unit        string
	Description string
	Values      []string
}

// Table is a grid of strings with column metadata
type Table struct {
	Base
	Columns  []*Column
	ReadOnly bool
}

// NewTable returns an empty table
func NewTable(name string) *Table {
	return &Table{Base: Base{Name: name}}
}

// Rows returns the number of rows
func (t *Table) Rows() int {
	n := 0
	for _, c := range t.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// AddColumn appends a column padded to the current row count
func (t *Table) AddColumn(name, unit, description string) *Column {
	c := &Column{Name: name, Unit: unit, Description: description, Values: make([]string, t.Rows())}
	t.Columns = append(t.Columns, c)
	return c
}

// Column returns the first column called name or nil
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AppendRow adds a row with cells given positionally
func (t *Table) AppendRow(cells ...string) error {
	if len(cells) > len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	n := t.Rows()
	for i, c := range t.Columns {
		for len(c.Values) < n {
			c.Values = append(c.Values, "")
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		c.Values = append(c.Values, v)
	}
	return nil
}

// Cell returns the value at row in the named column
func (t *Table) Cell(row int, column string) string {
	c := t.Column(column)
	if c == nil || row < 0 || row >= len(c.Values) {
		return ""
	}
	return c.Values[row]
}

// Row returns one row in column order
func (t *Table) Row(row int) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if row < len(c.Values) {
			out[i] = c.Values[row]
		}
	}
	return out
}

// WriteCSV writes a header line followed by every row
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for r := 0; r < t.Rows(); r++ {
		if err := cw.Write(t.Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
