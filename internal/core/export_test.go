package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	table := &Table{
		Columns: []Column{FloatColumn(ColLx), FloatColumn(ColMx), TextColumn(ColIncomeStatus)},
		Rows: []*Row{
			{Key: key("DEU", 2000), Age: 0, Cells: []Cell{FloatCell(1), MissingCell, TextCell("H")}},
			{Key: keyWithSuffix("DEU", "TE", 2000), Age: 1, Cells: []Cell{FloatCell(0.99), FloatCell(0.0005), MissingCell}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ISO3,ISO3_suffix,Year,Age,lx,mx,income_status", lines[0])
	assert.Equal(t, "DEU,,2000,0,1,,H", lines[1], "missing values and absent suffix are empty fields")
	assert.Equal(t, "DEU,TE,2000,1,0.99,0.0005,", lines[2])
}

func TestWriteSourceCSV(t *testing.T) {
	set := series("hfd", ColMx, key("USA", 1933), 14, 0.001)
	addRow(set, key("USA", 1933), 15)

	var buf bytes.Buffer
	require.NoError(t, WriteSourceCSV(&buf, set))
	assert.Equal(t, "ISO3,ISO3_suffix,Year,Age,mx\nUSA,,1933,14,0.001\nUSA,,1933,15,\n", buf.String())
}

func TestWriteAttributeCSV(t *testing.T) {
	attrs := &AttributeSet{
		Columns: []Column{TextColumn(ColIncomeStatus)},
		Rows: []AttributeRow{
			{Base: "AFG", Year: 1987, Cells: []Cell{TextCell("L")}},
			{Base: "AFG", Year: 1988},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAttributeCSV(&buf, attrs))
	assert.Equal(t, "ISO3,Year,income_status\nAFG,1987,L\nAFG,1988,\n", buf.String())
}
