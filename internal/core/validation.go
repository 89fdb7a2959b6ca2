package core

// validation.go checks source headers before rows are read.
//
// A missing required column fails the whole source (structural). Bad cells in
// present columns never fail the source: they coerce to missing and are
// reported as data-quality warnings by the adapter.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// FieldSpec describes one expected source column.
type FieldSpec struct {
	Name     string   // Column header name as published by the source
	Aliases  []string // Alternative header names
	Required bool
}

// ValidationError represents a single header validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Lookup returns the position of the spec's column, trying aliases in order.
func (idx HeaderIndex) Lookup(spec FieldSpec) (int, bool) {
	for _, name := range append([]string{spec.Name}, spec.Aliases...) {
		if pos, ok := idx[strings.ToLower(name)]; ok {
			return pos, true
		}
	}
	return 0, false
}

// ValidateHeader returns every missing required column, wrapped in
// ErrMissingColumn, or nil if the header is usable.
func ValidateHeader(specs []FieldSpec, idx HeaderIndex) error {
	var errs []error
	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := idx.Lookup(spec); !ok {
			errs = append(errs, ValidationError{Field: spec.Name, Message: "missing required column"})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMissingColumn, errors.Join(errs...))
}

// Cell returns the trimmed value at the spec's column, or "" when absent.
func (idx HeaderIndex) Cell(row []string, spec FieldSpec) string {
	pos, ok := idx.Lookup(spec)
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}
