package datastore

import (
	"errors"
	"strings"
)

// ErrNoColumns is returned when a schema is declared without columns.
var ErrNoColumns = errors.New("table columns cannot be empty")

// Column is one column of a table: its name and the full SQL type clause
// (for example "int NOT NULL PRIMARY KEY").
type Column struct {
	Name string
	Type string
}

// Definition returns "name type".
func (c Column) Definition() string {
	if c.Type == "" {
		return c.Name
	}
	return c.Name + " " + c.Type
}

// TableSchema is an immutable description of a table. Column order is the
// positional binding order for Insert and must match the table on disk.
type TableSchema struct {
	name    string
	columns []Column
}

// NewTableSchema builds a schema. At least one column is required.
func NewTableSchema(name string, columns ...Column) (*TableSchema, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	if name == "" {
		return nil, errors.New("table name cannot be empty")
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &TableSchema{name: name, columns: cols}, nil
}

// MustTableSchema is NewTableSchema for declarations known at compile time.
func MustTableSchema(name string, columns ...Column) *TableSchema {
	s, err := NewTableSchema(name, columns...)
	if err != nil {
		panic("datastore: " + name + ": " + err.Error())
	}
	return s
}

// Name returns the table name.
func (s *TableSchema) Name() string { return s.name }

// ColumnCount returns the number of columns.
func (s *TableSchema) ColumnCount() int { return len(s.columns) }

// ColumnAt returns the name of the column at index i (zero-based).
func (s *TableSchema) ColumnAt(i int) string { return s.columns[i].Name }

// ColumnIndexOf finds a column by name, ignoring case.
func (s *TableSchema) ColumnIndexOf(name string) (int, bool) {
	for i, c := range s.columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// Columns returns a copy of the column list.
func (s *TableSchema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// FullColumnDefinition joins every "name type" pair with commas, as used by
// CREATE TABLE.
func (s *TableSchema) FullColumnDefinition() string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = c.Definition()
	}
	return strings.Join(defs, ", ")
}

// Row is one record as strings in schema column order. NULL reads as "".
type Row []string

// Field returns the value of the named column, or "" when the schema has no
// such column or the row is short.
func (s *TableSchema) Field(row Row, name string) string {
	i, ok := s.ColumnIndexOf(name)
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
