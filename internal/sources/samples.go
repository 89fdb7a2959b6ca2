package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// sampleSuffix marks population samples in the suffix position of the key,
// so "ACH" is filed as base ACH, suffix HG.
const sampleSuffix = "HG"

var (
	sampleAge = core.FieldSpec{Name: "Age", Required: true}
	sampleLx  = core.FieldSpec{Name: "lx", Required: true}
	sampleMx  = core.FieldSpec{Name: "mx", Required: true}
)

func init() {
	core.Register(core.SourceDefinition{
		Info: core.SourceInfo{
			Key:      KeySamples,
			Role:     core.RoleSample,
			Label:    "Hunter-gatherer life tables",
			Artifact: "hg.csv",
			Order:    3,
		},
		FieldSpecs: []core.FieldSpec{sampleAge, sampleLx, sampleMx},
		Load:       loadSamples,
	})
}

// loadSamples reads each population sample. Missing or unreadable files are
// reported and skipped; the run continues with the rest.
func loadSamples(ctx context.Context, req core.LoadRequest) (*core.SourceSet, error) {
	set := &core.SourceSet{Name: KeySamples, Columns: sampleColumns()}

	for _, s := range req.Samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := readSample(s, req.Settings, req.Report)
		if err != nil {
			req.Report.Add(core.Issue{
				Kind:    core.IssueMissingSource,
				Source:  KeySamples,
				Key:     s.Code,
				Message: fmt.Sprintf("%s skipped: %v", s.Name, err),
			})
			continue
		}
		set.Rows = append(set.Rows, part.Rows...)
	}
	return set, nil
}

func sampleColumns() []core.Column {
	return []core.Column{core.FloatColumn(core.ColLx), core.FloatColumn(core.ColMx)}
}

func readSample(s core.SampleDescriptor, settings core.Settings, rep *core.Report) (*core.SourceSet, error) {
	key, err := core.ParsePopulationKey(s.Code+sampleSuffix, settings.SampleYear)
	if err != nil {
		return nil, err
	}

	records, err := readRecords(s.Path, "")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read source %s: empty file", s.Path)
	}

	header := append([]string(nil), records[0]...)
	if len(header) > 0 {
		if first := strings.ToLower(core.CleanCell(header[0])); first == "" || strings.HasPrefix(first, "unnamed") {
			header[0] = sampleAge.Name
		}
	}
	idx := core.MakeHeaderIndex(header)
	if err := core.ValidateHeader([]core.FieldSpec{sampleAge, sampleLx, sampleMx}, idx); err != nil {
		return nil, err
	}

	part := &core.SourceSet{Name: KeySamples, Columns: sampleColumns()}
	bad := newCoercions(KeySamples, s.Path)
	var missingLx, missingMx int
	for _, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		// Rows without a numeric age are labels or footnotes.
		age := core.ToFloat8(idx.Cell(rec, sampleAge))
		if !age.Valid || age.Float64 < 0 {
			continue
		}

		lx := bad.float(core.ColLx, idx.Cell(rec, sampleLx))
		mx := bad.float(core.ColMx, idx.Cell(rec, sampleMx))
		if !lx.Valid {
			missingLx++
		}
		if !mx.Valid {
			missingMx++
		}
		part.Rows = append(part.Rows, core.SourceRow{
			Key:   key,
			Age:   int(age.Float64),
			Cells: []core.Cell{{Float: lx}, {Float: mx}},
		})
	}
	bad.report(rep)
	if missingLx > 0 {
		rep.Warnf(KeySamples, key.String(), "%s: %d rows with missing lx", s.Name, missingLx)
	}
	if missingMx > 0 {
		rep.Warnf(KeySamples, key.String(), "%s: %d rows with missing mx", s.Name, missingMx)
	}

	if settings.StandardiseLx {
		opts := core.NormalizeOptions{
			Column:    core.ColLx,
			BaseAge:   settings.Ages.Min,
			Tolerance: settings.LxTolerance,
			Warn:      true,
		}
		if err := core.NormalizeSurvivorship(part, opts, rep); err != nil {
			return nil, err
		}
	}
	return core.FilterAges(part, settings.Ages), nil
}
