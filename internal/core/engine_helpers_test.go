package core

import "github.com/jackc/pgx/v5/pgtype"

func key(base string, year int) PopulationKey {
	return PopulationKey{Base: base, Year: year}
}

func keyWithSuffix(base, suffix string, year int) PopulationKey {
	return PopulationKey{Base: base, Suffix: pgtype.Text{String: suffix, Valid: true}, Year: year}
}

// series builds a one-column set with consecutive ages starting at from.
func series(name, col string, k PopulationKey, from int, values ...float64) *SourceSet {
	set := &SourceSet{Name: name, Columns: []Column{FloatColumn(col)}}
	for i, v := range values {
		set.Rows = append(set.Rows, SourceRow{Key: k, Age: from + i, Cells: []Cell{FloatCell(v)}})
	}
	return set
}

func addRow(set *SourceSet, k PopulationKey, age int, cells ...Cell) {
	set.Rows = append(set.Rows, SourceRow{Key: k, Age: age, Cells: cells})
}

func floatAt(t *Table, r *Row, col string) pgtype.Float8 {
	return t.Float(r, t.ColumnIndex(col))
}
