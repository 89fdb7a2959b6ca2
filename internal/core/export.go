package core

// export.go serialises tables as CSV.
//
// Life tables lead with ISO3, ISO3_suffix, Year, Age, then every value column
// in production order. Missing values are empty fields. Rows are written in
// table order; callers wanting another order must sort first.

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Header returns the exported column names of the table.
func (t *Table) Header() []string {
	header := make([]string, 0, len(KeyColumns)+len(t.Columns))
	header = append(header, KeyColumns...)
	for _, c := range t.Columns {
		header = append(header, c.Name)
	}
	return header
}

// WriteCSV writes the table to w.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 0, len(KeyColumns)+len(t.Columns))
	for _, r := range t.Rows {
		rec = rec[:0]
		rec = append(rec, keyFields(r.Key, r.Age)...)
		for i, c := range t.Columns {
			rec = append(rec, FormatCell(c, r.Cells[i]))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s age %d: %w", r.Key, r.Age, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSourceCSV writes a canonical source set with the same leading columns.
func WriteSourceCSV(w io.Writer, s *SourceSet) error {
	cw := csv.NewWriter(w)
	header := append([]string{}, KeyColumns...)
	for _, c := range s.Columns {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range s.Rows {
		rec := keyFields(r.Key, r.Age)
		for i, c := range s.Columns {
			cell := MissingCell
			if i < len(r.Cells) {
				cell = r.Cells[i]
			}
			rec = append(rec, FormatCell(c, cell))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttributeCSV writes an attribute set as ISO3, Year, columns...
func WriteAttributeCSV(w io.Writer, a *AttributeSet) error {
	cw := csv.NewWriter(w)
	header := []string{KeyColumns[0], KeyColumns[2]}
	for _, c := range a.Columns {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range a.Rows {
		rec := []string{r.Base, strconv.Itoa(r.Year)}
		for i, c := range a.Columns {
			cell := MissingCell
			if i < len(r.Cells) {
				cell = r.Cells[i]
			}
			rec = append(rec, FormatCell(c, cell))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCell renders a cell for CSV output. Missing values render empty.
func FormatCell(c Column, cell Cell) string {
	if c.Kind == ColumnText {
		if !cell.Text.Valid {
			return ""
		}
		return cell.Text.String
	}
	if !cell.Float.Valid {
		return ""
	}
	return strconv.FormatFloat(cell.Float.Float64, 'g', -1, 64)
}

func keyFields(k PopulationKey, age int) []string {
	suffix := ""
	if k.Suffix.Valid {
		suffix = k.Suffix.String
	}
	return []string{k.Base, suffix, strconv.Itoa(k.Year), strconv.Itoa(age)}
}
