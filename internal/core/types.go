// Package core provides the demographic merge and derivation engine.
// This package performs no I/O beyond the io.Writer handed to the exporter.
package core

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Standard column names shared by adapters and the engine.
const (
	ColLx           = "lx"
	ColMx           = "mx"
	ColLxmx         = "lxmx"
	ColDx           = "dx"
	ColQx           = "qx"
	ColSx           = "sx"
	ColVx           = "vx"
	ColIncomeStatus = "income_status"
)

// Leading key columns of every exported life table.
var KeyColumns = []string{"ISO3", "ISO3_suffix", "Year", "Age"}

// ColumnKind is the value type held by a column.
type ColumnKind int

const (
	ColumnFloat ColumnKind = iota
	ColumnText
)

// Column describes one value column of a source set or table.
type Column struct {
	Name string
	Kind ColumnKind
}

// FloatColumn returns a float-valued column definition.
func FloatColumn(name string) Column { return Column{Name: name, Kind: ColumnFloat} }

// TextColumn returns a text-valued column definition.
func TextColumn(name string) Column { return Column{Name: name, Kind: ColumnText} }

// Cell holds one value. Exactly one of Float or Text is meaningful, selected by
// the owning column's Kind. Valid=false on the active field means missing.
type Cell struct {
	Float pgtype.Float8
	Text  pgtype.Text
}

// FloatCell returns a present float cell.
func FloatCell(v float64) Cell { return Cell{Float: pgtype.Float8{Float64: v, Valid: true}} }

// TextCell returns a present text cell.
func TextCell(s string) Cell { return Cell{Text: pgtype.Text{String: s, Valid: true}} }

// MissingCell is the zero Cell: missing under either kind.
var MissingCell = Cell{}

// PopulationKey identifies one population-year series.
type PopulationKey struct {
	Base   string      // Always 3 upper-case characters
	Suffix pgtype.Text // Valid=false when the raw code has no trailing characters
	Year   int
}

// String renders the key as BASE[/SUFFIX]:YEAR for logs.
func (k PopulationKey) String() string {
	if k.Suffix.Valid {
		return fmt.Sprintf("%s/%s:%d", k.Base, k.Suffix.String, k.Year)
	}
	return fmt.Sprintf("%s:%d", k.Base, k.Year)
}

// Less orders keys by base code, suffix (absent first) and year.
func (k PopulationKey) Less(o PopulationKey) bool {
	if k.Base != o.Base {
		return k.Base < o.Base
	}
	if k.Suffix.Valid != o.Suffix.Valid {
		return !k.Suffix.Valid
	}
	if k.Suffix.String != o.Suffix.String {
		return k.Suffix.String < o.Suffix.String
	}
	return k.Year < o.Year
}

// AgeKey is the full join key of a canonical or merged row.
type AgeKey struct {
	PopulationKey
	Age int
}

// SourceRow is one canonical row produced by an adapter.
type SourceRow struct {
	Key   PopulationKey
	Age   int
	Open  bool // Age came from an open-ended bin such as "110+" or "12-"
	Cells []Cell
}

// AgeKey returns the row's join key.
func (r SourceRow) AgeKey() AgeKey { return AgeKey{PopulationKey: r.Key, Age: r.Age} }

// SourceSet is the canonical output of one adapter.
type SourceSet struct {
	Name    string
	Columns []Column
	Rows    []SourceRow
}

// ColumnIndex returns the position of the named column, or -1.
func (s *SourceSet) ColumnIndex(name string) int {
	return columnIndex(s.Columns, name)
}

// Keys returns the distinct population keys in first-seen order.
func (s *SourceSet) Keys() []PopulationKey {
	seen := make(map[PopulationKey]bool)
	var keys []PopulationKey
	for _, r := range s.Rows {
		if !seen[r.Key] {
			seen[r.Key] = true
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// Project returns a new set holding only the named columns, in the given order.
// Columns absent from s are returned as all-missing.
func (s *SourceSet) Project(name string, cols ...string) *SourceSet {
	out := &SourceSet{Name: name, Rows: make([]SourceRow, len(s.Rows))}
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = s.ColumnIndex(c)
		kind := ColumnFloat
		if idx[i] >= 0 {
			kind = s.Columns[idx[i]].Kind
		}
		out.Columns = append(out.Columns, Column{Name: c, Kind: kind})
	}
	for i, r := range s.Rows {
		cells := make([]Cell, len(cols))
		for j, k := range idx {
			if k >= 0 && k < len(r.Cells) {
				cells[j] = r.Cells[k]
			}
		}
		out.Rows[i] = SourceRow{Key: r.Key, Age: r.Age, Open: r.Open, Cells: cells}
	}
	return out
}

// Append adds the rows of other to s. Column layouts must match by name.
func (s *SourceSet) Append(other *SourceSet) error {
	if len(other.Columns) != len(s.Columns) {
		return fmt.Errorf("append %s to %s: column count %d != %d", other.Name, s.Name, len(other.Columns), len(s.Columns))
	}
	for i, c := range other.Columns {
		if c.Name != s.Columns[i].Name {
			return fmt.Errorf("append %s to %s: column %d is %q, want %q", other.Name, s.Name, i, c.Name, s.Columns[i].Name)
		}
	}
	s.Rows = append(s.Rows, other.Rows...)
	return nil
}

// AttributeRow carries values keyed by base code and year only.
type AttributeRow struct {
	Base  string
	Year  int
	Cells []Cell
}

// AttributeSet is a source that does not vary by suffix or age, such as
// country income classifications.
type AttributeSet struct {
	Name    string
	Columns []Column
	Rows    []AttributeRow
}

// Row is one merged life-table row.
type Row struct {
	Key   PopulationKey
	Age   int
	Cells []Cell
}

// Table is the merged life table. Row order is grid order.
type Table struct {
	Columns []Column
	Rows    []*Row
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return columnIndex(t.Columns, name)
}

// AddColumn appends a column, extending every row with a missing cell.
// Returns the new column's index. If the name already exists its index is returned.
func (t *Table) AddColumn(c Column) int {
	if i := t.ColumnIndex(c.Name); i >= 0 {
		return i
	}
	t.Columns = append(t.Columns, c)
	for _, r := range t.Rows {
		r.Cells = append(r.Cells, MissingCell)
	}
	return len(t.Columns) - 1
}

// Float returns the float value of row r at column index i.
func (t *Table) Float(r *Row, i int) pgtype.Float8 {
	if i < 0 || i >= len(r.Cells) {
		return pgtype.Float8{}
	}
	return r.Cells[i].Float
}

func columnIndex(cols []Column, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}
