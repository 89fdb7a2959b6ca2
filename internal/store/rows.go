package store

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// rowColumns is the COPY column list of life_table_rows.
var rowColumns = []string{
	"run_id", "iso3", "iso3_suffix", "year", "age",
	"lx", "mx", "lxmx", "dx", "qx", "sx", "vx", "income_status",
}

// valueColumns maps table columns onto rowColumns[5:].
var valueColumns = []string{
	core.ColLx, core.ColMx, core.ColLxmx, core.ColDx, core.ColQx, core.ColSx, core.ColVx, core.ColIncomeStatus,
}

// rowSource streams a life table as a pgx.CopyFromSource. Columns absent
// from the table are written as NULL.
type rowSource struct {
	runID pgtype.UUID
	table *core.Table
	cols  []int
	pos   int
}

func newRowSource(runID uuid.UUID, table *core.Table) *rowSource {
	cols := make([]int, len(valueColumns))
	for i, name := range valueColumns {
		cols[i] = table.ColumnIndex(name)
	}
	return &rowSource{runID: pgtype.UUID{Bytes: runID, Valid: true}, table: table, cols: cols, pos: -1}
}

func (s *rowSource) Next() bool {
	s.pos++
	return s.pos < len(s.table.Rows)
}

func (s *rowSource) Values() ([]any, error) {
	r := s.table.Rows[s.pos]
	vals := make([]any, 0, len(rowColumns))
	vals = append(vals, s.runID, r.Key.Base, r.Key.Suffix, int32(r.Key.Year), int32(r.Age))
	for i, ci := range s.cols {
		var cell core.Cell
		if ci >= 0 && ci < len(r.Cells) {
			cell = r.Cells[ci]
		}
		if valueColumns[i] == core.ColIncomeStatus {
			vals = append(vals, cell.Text)
		} else {
			vals = append(vals, cell.Float)
		}
	}
	return vals, nil
}

func (s *rowSource) Err() error { return nil }
