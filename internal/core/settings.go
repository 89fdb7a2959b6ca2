package core

import (
	"errors"
	"fmt"
)

// ErrInvalidAgeRange is returned when min_age > max_age or either is negative.
var ErrInvalidAgeRange = errors.New("invalid age range")

// AgeRange is an inclusive integer age interval.
type AgeRange struct {
	Min int
	Max int
}

// Validate checks 0 <= Min <= Max.
func (r AgeRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%w: ages must be non-negative (min=%d, max=%d)", ErrInvalidAgeRange, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidAgeRange, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether age lies in the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// Len returns the number of integer ages in the range.
func (r AgeRange) Len() int {
	return r.Max - r.Min + 1
}

// Settings is the immutable engine configuration for one run.
type Settings struct {
	Ages AgeRange

	// IncludeEdgeData keeps open-ended source age bins (e.g. "110+", "12-").
	IncludeEdgeData bool

	// StandardiseLx rescales survivorship so lx(Ages.Min) = 1.
	StandardiseLx bool

	// LxTolerance is the accepted distance of a sample's lx(base) from 1.0
	// before it is rescaled with a warning.
	LxTolerance float64

	// SampleYear is the placeholder year given to undated population samples.
	SampleYear int
}

// DefaultSettings mirrors the defaults of the env configuration.
func DefaultSettings() Settings {
	return Settings{
		Ages:          AgeRange{Min: 0, Max: 110},
		StandardiseLx: true,
		LxTolerance:   0.01,
		SampleYear:    1980,
	}
}
