package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// BaseCodeLen is the length of a population base code (ISO3), in characters.
const BaseCodeLen = 3

// ErrMalformedKey is returned for population codes shorter than BaseCodeLen
// characters.
var ErrMalformedKey = errors.New("malformed population key")

// NormalizeKey splits a raw population code into its base code and optional
// suffix. "deutnp " yields ("DEU", "TNP"); "FRA" yields ("FRA", absent).
func NormalizeKey(raw string) (string, pgtype.Text, error) {
	code := []rune(strings.ToUpper(strings.TrimSpace(raw)))
	if len(code) < BaseCodeLen {
		return "", pgtype.Text{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
	}
	base := string(code[:BaseCodeLen])
	if len(code) == BaseCodeLen {
		return base, pgtype.Text{}, nil
	}
	return base, pgtype.Text{String: string(code[BaseCodeLen:]), Valid: true}, nil
}

// ParsePopulationKey normalises raw and attaches year.
func ParsePopulationKey(raw string, year int) (PopulationKey, error) {
	base, suffix, err := NormalizeKey(raw)
	if err != nil {
		return PopulationKey{}, err
	}
	return PopulationKey{Base: base, Suffix: suffix, Year: year}, nil
}
