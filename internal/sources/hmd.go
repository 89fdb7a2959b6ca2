package sources

import (
	"context"

	"github.com/JonMunkholm/lifetable/internal/core"
)

var (
	hmdPopName = core.FieldSpec{Name: "PopName", Aliases: []string{"Code", "ISO3"}}
	hmdYear    = core.FieldSpec{Name: "Year", Required: true}
	hmdAge     = core.FieldSpec{Name: "Age", Required: true}
	hmdLx      = core.FieldSpec{Name: "lx", Required: true}
)

func init() {
	core.Register(core.SourceDefinition{
		Info: core.SourceInfo{
			Key:      KeyHMD,
			Role:     core.RoleMortality,
			Label:    "Human Mortality Database",
			Artifact: "hmd.csv",
			Order:    1,
		},
		FieldSpecs: []core.FieldSpec{hmdPopName, hmdYear, hmdAge, hmdLx},
		Load:       loadHMD,
	})
}

// loadHMD reads HMD period life tables. Files either carry a PopName column
// (tables by statistic) or are named after their population ("AUS.fltper_1x1.txt").
// Survivorship is published on a radix of 100,000 and rescaled silently.
func loadHMD(ctx context.Context, req core.LoadRequest) (*core.SourceSet, error) {
	set := &core.SourceSet{Name: KeyHMD, Columns: []core.Column{core.FloatColumn(core.ColLx)}}

	for _, path := range req.Paths {
		if err := readHMDFile(ctx, path, set, req.Report); err != nil {
			return nil, err
		}
	}

	if req.Settings.StandardiseLx {
		opts := core.NormalizeOptions{Column: core.ColLx, BaseAge: req.Settings.Ages.Min}
		if err := core.NormalizeSurvivorship(set, opts, req.Report); err != nil {
			return nil, err
		}
	}
	if !req.Settings.IncludeEdgeData {
		core.TrimOpenAges(set)
	}
	return set, nil
}

func readHMDFile(ctx context.Context, path string, set *core.SourceSet, rep *core.Report) error {
	fileCode := codeFromFilename(path)
	bad := newCoercions(KeyHMD, path)

	err := scanTextTable(ctx, path, []core.FieldSpec{hmdYear, hmdAge, hmdLx}, func(line int, row []string, idx core.HeaderIndex) {
		raw := fileCode
		if _, ok := idx.Lookup(hmdPopName); ok {
			raw = idx.Cell(row, hmdPopName)
		}

		year, err := core.ParseYear(idx.Cell(row, hmdYear))
		if err != nil {
			dropRow(rep, KeyHMD, path, line, err)
			return
		}
		key, err := core.ParsePopulationKey(raw, year)
		if err != nil {
			malformedKey(rep, KeyHMD, raw, path, line)
			return
		}
		age, open, err := core.ParseAge(idx.Cell(row, hmdAge))
		if err != nil {
			dropRow(rep, KeyHMD, path, line, err)
			return
		}

		set.Rows = append(set.Rows, core.SourceRow{
			Key:   key,
			Age:   age,
			Open:  open,
			Cells: []core.Cell{{Float: bad.float(core.ColLx, idx.Cell(row, hmdLx))}},
		})
	})
	if err != nil {
		return err
	}
	bad.report(rep)
	return nil
}
