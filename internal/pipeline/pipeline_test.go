package pipeline

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/lifetable/internal/config"
	"github.com/JonMunkholm/lifetable/internal/core"
	"github.com/JonMunkholm/lifetable/internal/metrics"
	"github.com/JonMunkholm/lifetable/internal/store"
)

const testHMD = `Life tables (period 1x1), Females
Last modified: 20 Apr 2022

   PopName  Year   Age      lx
   DEU      2000     0  100000
   DEU      2000     1   99000
   DEU      2000     2   97000
   DEU      2000    3+   90000
   FRA      1990     0  100000
   FRA      1990     1   99500
   FRA      1990     2   99000
`

const testHFD = `Germany, Age-specific fertility rate (ASFR)
Last modified: 22.11.2023, MPIDR

   Code  Year   Age     ASFR
   DEU   2000     0   0.00
   DEU   2000     1   0.00
   DEU   2000     2   0.01
   ITA   2000     2   0.02
`

const testIncome = `World Bank Analytical Classifications
,,FY00,FY01,FY02
,Data for calendar year :,1999,2000,2001
DEU,Germany,H,H,H
Note: fixed per fiscal year
`

const testSample = ",lx,mx\n0,1,0\n1,0.9,0.1\n2,0.8,0.2\n"

func writeInputs(t *testing.T) (string, *config.Sources) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		filepath.Join("HMD", "fltper_1x1", "fltper_1x1.txt"): testHMD,
		filepath.Join("HFD", "asfrRR.txt"):                   testHFD,
		filepath.Join("WBLG", "groups.csv"):                  testIncome,
		filepath.Join("HG", "Ache.csv"):                      testSample,
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	srcs := config.DefaultSources()
	srcs.IncomeStatus = core.SourceDescriptor{Dir: "WBLG", File: "groups.csv"}
	srcs.Samples = config.SampleSources{
		Dir:   "HG",
		Files: []config.SampleFile{{File: "Ache.csv", Code: "ACH", Name: "Ache"}},
	}
	return root, srcs
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	root, srcs := writeInputs(t)
	settings := core.DefaultSettings()
	settings.Ages = core.AgeRange{Min: 0, Max: 2}
	return &Pipeline{
		Settings:    settings,
		Sources:     srcs,
		DownloadDir: root,
		OutputDir:   t.TempDir(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRun_EndToEnd(t *testing.T) {
	p := newTestPipeline(t)
	var phases []Phase

	res, err := p.Run(context.Background(), uuid.New(), func(ph Phase) { phases = append(phases, ph) })
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(p.OutputDir, "data1"), res.Dir)
	assert.Equal(t, []Phase{PhaseLoading, PhaseMerging, PhaseDeriving, PhaseExporting}, phases)
	assert.Equal(t, []string{
		"hmd.csv", "hfd.csv", "hg.csv", "income_status.csv", LifeTableArtifact, CountryTableArtifact,
	}, res.Artifacts)
	for _, name := range res.Artifacts {
		assert.FileExists(t, filepath.Join(res.Dir, name))
	}
	assert.FileExists(t, filepath.Join(res.Dir, "log_file.log"))

	// ACH/HG and DEU intersect; FRA has no fertility and ITA no mortality.
	require.Len(t, res.Table.Rows, 6)

	total := 0
	for _, n := range res.IssueCounts() {
		total += n
	}
	assert.Equal(t, len(res.Issues), total, "issue counts cover every issue")

	records := readCSV(t, filepath.Join(res.Dir, LifeTableArtifact))
	assert.Equal(t, []string{
		"ISO3", "ISO3_suffix", "Year", "Age", "lx", "mx", "lxmx", "dx", "qx", "sx", "vx", "income_status",
	}, records[0])
	assert.Equal(t, []string{"ACH", "HG", "1980", "0"}, records[1][:4])
	assert.Equal(t, "", records[1][11], "no income status for samples")

	deu1 := records[5]
	assert.Equal(t, []string{"DEU", "", "2000", "1", "0.99", "0"}, deu1[:6])
	assert.Equal(t, "H", deu1[11])
	qx, err := strconv.ParseFloat(deu1[8], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.02/0.99, qx, 1e-12)

	deu2 := records[6]
	assert.Equal(t, "2", deu2[3])
	assert.Equal(t, "", deu2[7], "terminal dx is missing")

	countries := readCSV(t, filepath.Join(res.Dir, CountryTableArtifact))
	assert.Equal(t, []string{"ISO3", "Year", "income_status"}, countries[0])
	assert.Len(t, countries, 4)
}

func TestRun_NextDirectory(t *testing.T) {
	p := newTestPipeline(t)

	first, err := p.Run(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	assert.Equal(t, "data1", filepath.Base(first.Dir))
	assert.Equal(t, "data2", filepath.Base(second.Dir))
}

func TestRun_MissingSourceFails(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, os.Remove(filepath.Join(p.DownloadDir, "HFD", "asfrRR.txt")))
	reg := prometheus.NewRegistry()
	p.Metrics = metrics.New(reg)

	_, err := p.Run(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, core.ErrMissingOrAmbiguousSource)
	assert.Equal(t, "SRC001", core.MapError(err).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.RunOutcome.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.Metrics.RunsInProgress))
}

func TestRun_InvalidAgeRange(t *testing.T) {
	p := newTestPipeline(t)
	p.Settings.Ages = core.AgeRange{Min: 5, Max: 1}

	_, err := p.Run(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidAgeRange)
}

func TestRun_Cancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseCancelled, statusOf(err))
}

func TestRun_Metrics(t *testing.T) {
	p := newTestPipeline(t)
	p.Metrics = metrics.New(prometheus.NewRegistry())

	_, err := p.Run(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.RunOutcome.WithLabelValues("complete")))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.Metrics.LifeTableRows))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.Metrics.SourceRows.WithLabelValues("hmd")), "3+ trimmed")
	assert.Equal(t, 3.0, testutil.ToFloat64(p.Metrics.SourceRows.WithLabelValues("hg")))
}

type fakeRecorder struct {
	runs   []store.RunRecord
	tables []*core.Table
}

func (f *fakeRecorder) SaveRun(_ context.Context, run store.RunRecord, table *core.Table) error {
	f.runs = append(f.runs, run)
	f.tables = append(f.tables, table)
	return nil
}

func TestRun_Recorder(t *testing.T) {
	p := newTestPipeline(t)
	rec := &fakeRecorder{}
	p.Recorder = rec
	id := uuid.New()

	res, err := p.Run(context.Background(), id, nil)
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "complete", run.Status)
	assert.Equal(t, 6, run.RowCount)
	assert.Equal(t, res.Dir, run.OutputDir)
	assert.Same(t, res.Table, rec.tables[0])
}

func TestRun_RecorderOnFailure(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, os.Remove(filepath.Join(p.DownloadDir, "HMD", "fltper_1x1", "fltper_1x1.txt")))
	rec := &fakeRecorder{}
	p.Recorder = rec

	_, err := p.Run(context.Background(), uuid.New(), nil)
	require.Error(t, err)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "failed", rec.runs[0].Status)
	assert.NotEmpty(t, rec.runs[0].Error)
	assert.Nil(t, rec.tables[0])
}

func TestNextRunDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data1"), 0o755))

	dir, err := NextRunDir(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data2"), dir)
	assert.DirExists(t, dir)
}
