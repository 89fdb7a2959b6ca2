package core

// convert.go coerces raw source cells into typed values.
//
// Demographic sources are messy in predictable ways:
//   - Missing markers: ".", "..", "NA", "NaN", "-", empty cells
//   - Open-ended age bins: "110+", "12-", "<15"
//   - Thousands separators in radix-scaled counts
//   - Spreadsheet artifacts (="...", surrounding quotes)
//
// All To* functions return values with Valid=false for empty or invalid input.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates a numeric string after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ageRegex extracts the integer bound of an age label.
var ageRegex = regexp.MustCompile(`\d+`)

// missingMarkers are cell values that mean "no data".
var missingMarkers = map[string]bool{
	".":   true,
	"..":  true,
	"-":   true,
	"na":  true,
	"n/a": true,
	"nan": true,
}

// ToFloat8 converts a string to pgtype.Float8.
// Returns invalid for empty cells, missing markers and unparseable text.
func ToFloat8(s string) pgtype.Float8 {
	s = CleanCell(s)
	if s == "" || missingMarkers[strings.ToLower(s)] {
		return pgtype.Float8{Valid: false}
	}

	s = strings.ReplaceAll(s, ",", "")
	if !numericRegex.MatchString(s) {
		return pgtype.Float8{Valid: false}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToText converts a string to pgtype.Text.
// Returns invalid if the cleaned string is empty or a missing marker.
func ToText(s string) pgtype.Text {
	s = CleanCell(s)
	if s == "" || missingMarkers[strings.ToLower(s)] {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseAge extracts the integer age from labels such as "42", "110+" or "12-".
// open reports whether the label marks an open-ended bin.
func ParseAge(s string) (age int, open bool, err error) {
	s = CleanCell(s)
	digits := ageRegex.FindString(s)
	if digits == "" {
		return 0, false, fmt.Errorf("invalid age %q", s)
	}
	age, err = strconv.Atoi(digits)
	if err != nil {
		return 0, false, fmt.Errorf("invalid age %q: %w", s, err)
	}
	open = strings.ContainsAny(s, "+-<>")
	return age, open, nil
}

// ParseYear parses a calendar year, accepting float renderings like "1990.0"
// that spreadsheets produce.
func ParseYear(s string) (int, error) {
	s = CleanCell(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(f), nil
}

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
