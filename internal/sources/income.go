package sources

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// minYearColumns is how many calendar-year cells a row needs to count as
// the header of the classification history.
const minYearColumns = 3

var iso3Regex = regexp.MustCompile(`^[A-Z]{3}$`)

func init() {
	core.Register(core.SourceDefinition{
		Info: core.SourceInfo{
			Key:      KeyIncomeStatus,
			Role:     core.RoleAttribute,
			Label:    "World Bank income classification",
			Artifact: "income_status.csv",
			Order:    4,
		},
		LoadAttributes: loadIncomeStatus,
	})
}

// loadIncomeStatus reads the World Bank historical classification workbook.
// The sheet is wide: one row per country code and one column per year. It is
// melted to (ISO3, Year, income_status) rows sorted by code then year. Rows
// above the year header and below the country block (notes, thresholds,
// aggregates) are ignored because their first cell is not a country code.
func loadIncomeStatus(ctx context.Context, req core.LoadRequest) (*core.AttributeSet, error) {
	set := &core.AttributeSet{
		Name:    KeyIncomeStatus,
		Columns: []core.Column{core.TextColumn(core.ColIncomeStatus)},
	}

	for _, path := range req.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := readRecords(path, req.Sheet)
		if err != nil {
			return nil, err
		}
		part, err := meltIncomeStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", path, err)
		}
		set.Rows = append(set.Rows, part...)
	}

	sort.SliceStable(set.Rows, func(i, j int) bool {
		a, b := set.Rows[i], set.Rows[j]
		if a.Base != b.Base {
			return a.Base < b.Base
		}
		return a.Year < b.Year
	})
	return set, nil
}

func meltIncomeStatus(rows [][]string) ([]core.AttributeRow, error) {
	headerAt, years := findYearHeader(rows)
	if headerAt < 0 {
		return nil, fmt.Errorf("no row with %d or more year columns", minYearColumns)
	}

	var out []core.AttributeRow
	for _, rec := range rows[headerAt+1:] {
		if len(rec) == 0 {
			continue
		}
		code := core.CleanCell(rec[0])
		if !iso3Regex.MatchString(code) {
			continue
		}
		for _, yc := range years {
			var cell core.Cell
			if yc.col < len(rec) {
				cell.Text = core.ToText(rec[yc.col])
			}
			out = append(out, core.AttributeRow{Base: code, Year: yc.year, Cells: []core.Cell{cell}})
		}
	}
	return out, nil
}

// findYearHeader returns the first row holding at least minYearColumns
// calendar years, and the column positions of those years in column order.
// Fiscal-year labels such as "FY89" do not count.
func findYearHeader(rows [][]string) (int, []yearColumn) {
	for i, rec := range rows {
		var years []yearColumn
		for col, cell := range rec {
			if col == 0 {
				continue
			}
			y, err := core.ParseYear(cell)
			if err != nil || y < 1800 || y > 2200 {
				continue
			}
			years = append(years, yearColumn{col: col, year: y})
		}
		if len(years) >= minYearColumns {
			return i, years
		}
	}
	return -1, nil
}

type yearColumn struct {
	col  int
	year int
}
