package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/lifetable/internal/core"
)

const historySheet = "Country Analytical History"

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "OGHIST.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(historySheet)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"cover"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(historySheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoadIncomeStatus(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"World Bank Analytical Classifications"},
		{"", "", "FY89", "FY90", "FY91"},
		{"", "Data for calendar year :", 1987, 1988, 1989},
		{"Low income (L)", "<= 480", "<= 530", "<= 580", "<= 610"},
		{"ALB", "Albania", "LM", "LM", "LM"},
		{"AFG", "Afghanistan", "L", "L", ".."},
		{"Note: classifications are fixed for each fiscal year."},
	})

	req := request(path)
	req.Sheet = historySheet
	set, err := loadIncomeStatus(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []core.Column{core.TextColumn(core.ColIncomeStatus)}, set.Columns)
	require.Len(t, set.Rows, 6)

	type flat struct {
		base   string
		year   int
		status string
		valid  bool
	}
	var got []flat
	for _, r := range set.Rows {
		got = append(got, flat{r.Base, r.Year, r.Cells[0].Text.String, r.Cells[0].Text.Valid})
	}
	assert.Equal(t, []flat{
		{"AFG", 1987, "L", true},
		{"AFG", 1988, "L", true},
		{"AFG", 1989, "", false},
		{"ALB", 1987, "LM", true},
		{"ALB", 1988, "LM", true},
		{"ALB", 1989, "LM", true},
	}, got)
}

func TestLoadIncomeStatus_RaggedRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"ISO3", "Country", 2000, 2001, 2002},
		{"BRA", "Brazil", "UM"},
	})
	req := request(path)
	req.Sheet = historySheet

	set, err := loadIncomeStatus(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, set.Rows, 3)
	assert.True(t, set.Rows[0].Cells[0].Text.Valid)
	assert.False(t, set.Rows[2].Cells[0].Text.Valid, "cells past the end of a short row are missing")
}

func TestLoadIncomeStatus_Errors(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"no", "years", "here"}})

	req := request(path)
	req.Sheet = historySheet
	_, err := loadIncomeStatus(context.Background(), req)
	assert.ErrorContains(t, err, "year columns")

	req.Sheet = "Missing Sheet"
	_, err = loadIncomeStatus(context.Background(), req)
	assert.Error(t, err)
}
