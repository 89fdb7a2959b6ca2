package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lxValues(set *SourceSet) []float64 {
	col := set.ColumnIndex(ColLx)
	out := make([]float64, len(set.Rows))
	for i, r := range set.Rows {
		out[i] = r.Cells[col].Float.Float64
	}
	return out
}

func TestNormalizeSurvivorship_Radix(t *testing.T) {
	set := series("hmd", ColLx, key("AUS", 1921), 0, 100000, 92000, 90000)
	rep := NewReport(nil)

	require.NoError(t, NormalizeSurvivorship(set, NormalizeOptions{Column: ColLx}, rep))
	assert.InDeltaSlice(t, []float64{1, 0.92, 0.9}, lxValues(set), eps)
	assert.Zero(t, rep.Count(IssueDataQuality), "radix rescaling is silent")
}

func TestNormalizeSurvivorship_Idempotent(t *testing.T) {
	set := series("hg", ColLx, key("KUN", 1980), 0, 0.9, 0.6, 0.3)
	opts := NormalizeOptions{Column: ColLx, Tolerance: 0.01, Warn: true}
	rep := NewReport(nil)

	require.NoError(t, NormalizeSurvivorship(set, opts, rep))
	once := lxValues(set)
	require.NoError(t, NormalizeSurvivorship(set, opts, rep))

	assert.InDeltaSlice(t, once, lxValues(set), eps)
	assert.InDeltaSlice(t, []float64{1, 2.0 / 3, 1.0 / 3}, once, eps)
	assert.Equal(t, 1, rep.Count(IssueDataQuality), "only the first pass rescales")
}

func TestNormalizeSurvivorship_Tolerance(t *testing.T) {
	set := series("hg", ColLx, key("HDZ", 1980), 0, 0.995, 0.5)
	require.NoError(t, NormalizeSurvivorship(set, NormalizeOptions{Column: ColLx, Tolerance: 0.01, Warn: true}, nil))
	assert.Equal(t, []float64{0.995, 0.5}, lxValues(set), "values within tolerance are left unchanged")
}

func TestNormalizeSurvivorship_MissingBase(t *testing.T) {
	k := key("ACH", 1980)
	set := series("hg", ColLx, k, 1, 0.8, 0.7)
	addRow(set, key("ZZZ", 1980), 0, FloatCell(0))
	rep := NewReport(nil)

	require.NoError(t, NormalizeSurvivorship(set, NormalizeOptions{Column: ColLx}, rep))
	assert.Equal(t, []float64{0.8, 0.7, 0}, lxValues(set))
	assert.Equal(t, 2, rep.Count(IssueDataQuality))
}

func TestNormalizeSurvivorship_UnknownColumn(t *testing.T) {
	err := NormalizeSurvivorship(&SourceSet{Name: "hfd"}, NormalizeOptions{Column: ColLx}, nil)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestTrimOpenAges(t *testing.T) {
	k := key("JPN", 2010)
	set := &SourceSet{Name: "hfd", Columns: []Column{FloatColumn(ColMx)}}
	set.Rows = []SourceRow{
		{Key: k, Age: 12, Open: true, Cells: []Cell{FloatCell(0.0001)}},
		{Key: k, Age: 13, Cells: []Cell{FloatCell(0.0002)}},
		{Key: k, Age: 55, Open: true, Cells: []Cell{FloatCell(0.0001)}},
	}

	assert.Equal(t, 2, TrimOpenAges(set))
	require.Len(t, set.Rows, 1)
	assert.Equal(t, 13, set.Rows[0].Age)
}
