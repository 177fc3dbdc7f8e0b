package core

import (
	"fmt"
	"time"
)

// ColumnType is the logical type of a table column.
type ColumnType string

// Column type constants. Values carried in rows use the Go type noted.
const (
	TypeBigInt    ColumnType = "BIGINT"    // int64
	TypeDouble    ColumnType = "DOUBLE"    // float64
	TypeDecimal   ColumnType = "DECIMAL"   // decimal.Decimal
	TypeDate      ColumnType = "DATE"      // time.Time at UTC midnight
	TypeTimestamp ColumnType = "TIMESTAMP" // time.Time in UTC
	TypeVarchar   ColumnType = "VARCHAR"   // string
	TypeBoolean   ColumnType = "BOOLEAN"   // bool
)

// Column describes one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Row holds one value per column. A nil value is SQL NULL.
type Row []any

// Table is an ordered, schema-stable set of rows.
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row

	index map[string]int
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns ...Column) *Table {
	t := &Table{
		Name:    name,
		Columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	return t
}

// Index returns the position of a column, or -1 if absent.
func (t *Table) Index(name string) int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c.Name] = i
		}
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the table has a column named name.
func (t *Table) HasColumn(name string) bool {
	return t.Index(name) >= 0
}

// RequireColumns returns an error naming the first missing column.
func (t *Table) RequireColumns(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return fmt.Errorf("table %s: missing column %q", t.Name, n)
		}
	}
	return nil
}

// Get returns the value of column name in row, or nil if the column is absent.
func (t *Table) Get(row Row, name string) any {
	i := t.Index(name)
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(row Row) {
	if len(row) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: row has %d values, want %d", t.Name, len(row), len(t.Columns)))
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
