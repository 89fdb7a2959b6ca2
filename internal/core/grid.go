package core

import "sort"

// Grid is the dense cross product of population keys and an age range.
type Grid struct {
	Keys []PopulationKey
	Ages AgeRange
}

// Len returns the number of grid rows.
func (g *Grid) Len() int {
	return len(g.Keys) * g.Ages.Len()
}

// Each calls fn for every grid row in order: keys in Keys order, ages ascending.
func (g *Grid) Each(fn func(key PopulationKey, age int)) {
	for _, k := range g.Keys {
		for a := g.Ages.Min; a <= g.Ages.Max; a++ {
			fn(k, a)
		}
	}
}

// BuildGrid intersects the population keys of mortality and fertility and
// crosses them with ages. Keys seen on only one side are dropped; the derived
// fields need both series. An empty side yields an empty grid.
func BuildGrid(mortality, fertility *SourceSet, ages AgeRange, rep *Report) (*Grid, error) {
	if err := ages.Validate(); err != nil {
		return nil, err
	}

	grid := &Grid{Ages: ages}
	if mortality == nil || fertility == nil {
		rep.Add(Issue{Kind: IssueEmptyIntersection, Source: "grid", Message: "no common population-years: a source is absent"})
		return grid, nil
	}

	fertKeys := make(map[PopulationKey]bool)
	for _, k := range fertility.Keys() {
		fertKeys[k] = true
	}
	for _, k := range mortality.Keys() {
		if fertKeys[k] {
			grid.Keys = append(grid.Keys, k)
		}
	}

	sort.Slice(grid.Keys, func(i, j int) bool {
		return grid.Keys[i].Less(grid.Keys[j])
	})

	if len(grid.Keys) == 0 {
		rep.Add(Issue{
			Kind:    IssueEmptyIntersection,
			Source:  "grid",
			Message: "no common population-years between " + mortality.Name + " and " + fertility.Name,
		})
	}
	return grid, nil
}
