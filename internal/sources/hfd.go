package sources

import (
	"context"

	"github.com/JonMunkholm/lifetable/internal/core"
)

var (
	hfdCode = core.FieldSpec{Name: "Code", Aliases: []string{"PopName", "ISO3"}, Required: true}
	hfdYear = core.FieldSpec{Name: "Year", Required: true}
	hfdAge  = core.FieldSpec{Name: "Age", Required: true}
	hfdASFR = core.FieldSpec{Name: "ASFR", Aliases: []string{"mx"}, Required: true}
)

func init() {
	core.Register(core.SourceDefinition{
		Info: core.SourceInfo{
			Key:      KeyHFD,
			Role:     core.RoleFertility,
			Label:    "Human Fertility Database",
			Artifact: "hfd.csv",
			Order:    2,
		},
		FieldSpecs: []core.FieldSpec{hfdCode, hfdYear, hfdAge, hfdASFR},
		Load:       loadHFD,
	})
}

// loadHFD reads HFD age-specific fertility rates (the *RR.txt tables). ASFR
// becomes mx. The open bins 12- and 55+ are trimmed unless edge data is kept.
func loadHFD(ctx context.Context, req core.LoadRequest) (*core.SourceSet, error) {
	set := &core.SourceSet{Name: KeyHFD, Columns: []core.Column{core.FloatColumn(core.ColMx)}}
	specs := []core.FieldSpec{hfdCode, hfdYear, hfdAge, hfdASFR}

	for _, path := range req.Paths {
		bad := newCoercions(KeyHFD, path)
		err := scanTextTable(ctx, path, specs, func(line int, row []string, idx core.HeaderIndex) {
			raw := idx.Cell(row, hfdCode)
			year, err := core.ParseYear(idx.Cell(row, hfdYear))
			if err != nil {
				dropRow(req.Report, KeyHFD, path, line, err)
				return
			}
			key, err := core.ParsePopulationKey(raw, year)
			if err != nil {
				malformedKey(req.Report, KeyHFD, raw, path, line)
				return
			}
			age, open, err := core.ParseAge(idx.Cell(row, hfdAge))
			if err != nil {
				dropRow(req.Report, KeyHFD, path, line, err)
				return
			}

			set.Rows = append(set.Rows, core.SourceRow{
				Key:   key,
				Age:   age,
				Open:  open,
				Cells: []core.Cell{{Float: bad.float(core.ColMx, idx.Cell(row, hfdASFR))}},
			})
		})
		if err != nil {
			return nil, err
		}
		bad.report(req.Report)
	}

	if !req.Settings.IncludeEdgeData {
		core.TrimOpenAges(set)
	}
	return set, nil
}
