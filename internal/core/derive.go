package core

// derive.go computes life-table fields per (base, suffix, year) group.
//
// Rows of a group need not be contiguous in the table. Each group is collected
// as an index list, sorted by age, and scanned by position. Missing inputs give
// missing outputs; nothing is defaulted to zero.

import (
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgtype"
)

// DerivedColumns lists the columns appended by Derive, in order.
var DerivedColumns = []string{ColLxmx, ColDx, ColQx, ColSx, ColVx}

// Derive appends lxmx, dx, qx, sx and vx to table in place. The table must
// carry lx and mx float columns.
func Derive(table *Table) error {
	lxCol := table.ColumnIndex(ColLx)
	mxCol := table.ColumnIndex(ColMx)
	if lxCol < 0 || mxCol < 0 {
		return fmt.Errorf("%w: derive needs %q and %q", ErrMissingColumn, ColLx, ColMx)
	}

	cols := make(map[string]int, len(DerivedColumns))
	for _, name := range DerivedColumns {
		cols[name] = table.AddColumn(FloatColumn(name))
	}

	for _, group := range groupRows(table) {
		deriveGroup(table, group, lxCol, mxCol, cols)
	}
	return nil
}

// groupRows returns row indices per population key, each sorted by age.
// Groups are returned in first-seen order.
func groupRows(table *Table) [][]int {
	pos := make(map[PopulationKey]int)
	var groups [][]int
	for i, r := range table.Rows {
		g, ok := pos[r.Key]
		if !ok {
			g = len(groups)
			pos[r.Key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(a, b int) bool {
			return table.Rows[g[a]].Age < table.Rows[g[b]].Age
		})
	}
	return groups
}

func deriveGroup(table *Table, group []int, lxCol, mxCol int, cols map[string]int) {
	n := len(group)
	lx := make([]pgtype.Float8, n)
	lxmx := make([]pgtype.Float8, n)
	for p, ri := range group {
		r := table.Rows[ri]
		lx[p] = r.Cells[lxCol].Float
		mx := r.Cells[mxCol].Float
		if lx[p].Valid && mx.Valid {
			lxmx[p] = float8(lx[p].Float64 * mx.Float64)
		}
	}

	for p, ri := range group {
		r := table.Rows[ri]
		r.Cells[cols[ColLxmx]].Float = lxmx[p]

		var dx, qx, sx pgtype.Float8
		if next := nextAge(table, group, p); next >= 0 {
			cur, nxt := lx[p], lx[next]
			if cur.Valid && nxt.Valid {
				dx = float8(cur.Float64 - nxt.Float64)
				if cur.Float64 != 0 {
					qx = float8(1 - nxt.Float64/cur.Float64)
					sx = float8(1 - qx.Float64)
				}
			}
		}
		r.Cells[cols[ColDx]].Float = dx
		r.Cells[cols[ColQx]].Float = qx
		r.Cells[cols[ColSx]].Float = sx
	}

	// Reverse cumulative sum of lxmx, oldest age first. Missing terms are
	// skipped in the running total but leave their own vx missing.
	var cum float64
	for p := n - 1; p >= 0; p-- {
		var vx pgtype.Float8
		if lxmx[p].Valid {
			cum += lxmx[p].Float64
			if lx[p].Valid && lx[p].Float64 != 0 {
				vx = float8(cum / lx[p].Float64)
			}
		}
		table.Rows[group[p]].Cells[cols[ColVx]].Float = vx
	}
}

// nextAge returns the group position holding age+1 relative to position p,
// or -1 when p is at the group's terminal age or age+1 is absent.
func nextAge(table *Table, group []int, p int) int {
	age := table.Rows[group[p]].Age
	for q := p + 1; q < len(group); q++ {
		a := table.Rows[group[q]].Age
		if a == age {
			continue
		}
		if a == age+1 {
			return q
		}
		return -1
	}
	return -1
}

func float8(v float64) pgtype.Float8 {
	return pgtype.Float8{Float64: v, Valid: true}
}
