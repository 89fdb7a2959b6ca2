package core

// merge.go left-joins canonical source rows onto the age grid.
//
// Duplicate (key, age) rows in a source are reported, never deduplicated: a
// duplicated key fans out into one merged row per matching combination so the
// problem stays visible in the output.

import (
	"fmt"
	"sort"
)

// DuplicateKey describes a join key held by more than one source row.
type DuplicateKey struct {
	Key   AgeKey
	Count int
}

// FindDuplicates returns every (key, age) with more than one row in set,
// ordered by key then age.
func FindDuplicates(set *SourceSet) []DuplicateKey {
	counts := make(map[AgeKey]int, len(set.Rows))
	for _, r := range set.Rows {
		counts[r.AgeKey()]++
	}

	var dups []DuplicateKey
	for k, n := range counts {
		if n > 1 {
			dups = append(dups, DuplicateKey{Key: k, Count: n})
		}
	}
	sort.Slice(dups, func(i, j int) bool {
		a, b := dups[i].Key, dups[j].Key
		if a.PopulationKey != b.PopulationKey {
			return a.PopulationKey.Less(b.PopulationKey)
		}
		return a.Age < b.Age
	})
	return dups
}

// ReportDuplicates records a DuplicateKeyWarning per duplicated key in set.
func ReportDuplicates(set *SourceSet, rep *Report) []DuplicateKey {
	dups := FindDuplicates(set)
	for _, d := range dups {
		rep.Add(Issue{
			Kind:    IssueDuplicateKey,
			Source:  set.Name,
			Key:     d.Key.PopulationKey.String(),
			Age:     intPtr(d.Key.Age),
			Count:   d.Count,
			Message: fmt.Sprintf("%d rows share one join key; join will fan out", d.Count),
		})
	}
	return dups
}

// FilterAges returns a copy of set restricted to ages within r.
func FilterAges(set *SourceSet, r AgeRange) *SourceSet {
	out := &SourceSet{Name: set.Name, Columns: set.Columns}
	for _, row := range set.Rows {
		if r.Contains(row.Age) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Merge builds the life table by left-joining each set onto grid in order.
// Mortality (the first set) is pre-filtered to the grid's age range. Column
// names must be unique across sets.
func Merge(grid *Grid, rep *Report, sets ...*SourceSet) (*Table, error) {
	table := &Table{}
	seen := make(map[string]string)
	for _, s := range sets {
		for _, c := range s.Columns {
			if prev, ok := seen[c.Name]; ok {
				return nil, fmt.Errorf("merge: column %q provided by both %s and %s", c.Name, prev, s.Name)
			}
			seen[c.Name] = s.Name
			table.Columns = append(table.Columns, c)
		}
	}

	indexes := make([]map[AgeKey][]int, len(sets))
	filtered := make([]*SourceSet, len(sets))
	for i, s := range sets {
		if i == 0 {
			s = FilterAges(s, grid.Ages)
		}
		filtered[i] = s
		ReportDuplicates(s, rep)
		indexes[i] = indexRows(s)
	}

	table.Rows = make([]*Row, 0, grid.Len())
	grid.Each(func(key PopulationKey, age int) {
		ak := AgeKey{PopulationKey: key, Age: age}
		partial := [][]Cell{nil}
		for i, s := range filtered {
			partial = joinCells(partial, s, indexes[i][ak])
		}
		for _, cells := range partial {
			table.Rows = append(table.Rows, &Row{Key: key, Age: age, Cells: cells})
		}
	})
	return table, nil
}

func indexRows(set *SourceSet) map[AgeKey][]int {
	idx := make(map[AgeKey][]int, len(set.Rows))
	for i, r := range set.Rows {
		k := r.AgeKey()
		idx[k] = append(idx[k], i)
	}
	return idx
}

// joinCells extends each partial row with the cells of every matching source
// row. No match appends missing cells; n matches multiply the partial rows by n.
func joinCells(partial [][]Cell, set *SourceSet, matches []int) [][]Cell {
	width := len(set.Columns)
	if len(matches) == 0 {
		for i := range partial {
			partial[i] = append(partial[i], make([]Cell, width)...)
		}
		return partial
	}

	out := make([][]Cell, 0, len(partial)*len(matches))
	for _, p := range partial {
		for _, m := range matches {
			cells := make([]Cell, len(p), len(p)+width)
			copy(cells, p)
			src := set.Rows[m].Cells
			for c := 0; c < width; c++ {
				if c < len(src) {
					cells = append(cells, src[c])
				} else {
					cells = append(cells, MissingCell)
				}
			}
			out = append(out, cells)
		}
	}
	return out
}

// JoinAttributes left-joins attrs onto table by (base code, year), ignoring
// suffix. Duplicate attribute keys keep the first row and are reported.
func JoinAttributes(table *Table, attrs *AttributeSet, rep *Report) {
	type key struct {
		base string
		year int
	}
	idx := make(map[key]int, len(attrs.Rows))
	for i, r := range attrs.Rows {
		k := key{r.Base, r.Year}
		if _, ok := idx[k]; ok {
			rep.Add(Issue{
				Kind:    IssueDuplicateKey,
				Source:  attrs.Name,
				Key:     fmt.Sprintf("%s:%d", r.Base, r.Year),
				Count:   2,
				Message: "duplicate attribute row; first kept",
			})
			continue
		}
		idx[k] = i
	}

	cols := make([]int, len(attrs.Columns))
	for i, c := range attrs.Columns {
		cols[i] = table.AddColumn(c)
	}
	for _, row := range table.Rows {
		i, ok := idx[key{row.Key.Base, row.Key.Year}]
		if !ok {
			continue
		}
		src := attrs.Rows[i].Cells
		for c, ti := range cols {
			if c < len(src) {
				row.Cells[ti] = src[c]
			}
		}
	}
}
