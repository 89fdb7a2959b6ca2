package core

import (
	"fmt"
	"math"
)

// NormalizeOptions controls survivorship rescaling.
type NormalizeOptions struct {
	Column  string
	BaseAge int

	// Tolerance around 1.0 within which lx(base) is accepted unchanged.
	// Zero rescales whenever lx(base) != 1.
	Tolerance float64

	// Warn reports each rescaled group as a data-quality warning. Sources
	// published on a radix scale (e.g. per 100,000) rescale silently.
	Warn bool
}

// NormalizeSurvivorship divides the column by its value at BaseAge for each
// population key, so lx(BaseAge) = 1. Groups already at 1.0 are unchanged.
// Groups without a usable base value are left as-is and reported.
func NormalizeSurvivorship(set *SourceSet, opts NormalizeOptions, rep *Report) error {
	col := set.ColumnIndex(opts.Column)
	if col < 0 {
		return fmt.Errorf("%w: %s has no %q column", ErrMissingColumn, set.Name, opts.Column)
	}

	base := make(map[PopulationKey]float64)
	for _, r := range set.Rows {
		if r.Age != opts.BaseAge {
			continue
		}
		if _, ok := base[r.Key]; ok {
			continue
		}
		if v := r.Cells[col].Float; v.Valid {
			base[r.Key] = v.Float64
		}
	}

	scale := make(map[PopulationKey]float64)
	for _, k := range set.Keys() {
		b, ok := base[k]
		switch {
		case !ok:
			rep.Warnf(set.Name, k.String(), "no %s at age %d; survivorship left unnormalised", opts.Column, opts.BaseAge)
		case b == 0:
			rep.Warnf(set.Name, k.String(), "%s at age %d is zero; survivorship left unnormalised", opts.Column, opts.BaseAge)
		case b == 1 || math.Abs(b-1) <= opts.Tolerance:
		default:
			scale[k] = b
			if opts.Warn {
				rep.Warnf(set.Name, k.String(), "%s at age %d is %.4f, normalising to 1.0", opts.Column, opts.BaseAge, b)
			}
		}
	}

	for i := range set.Rows {
		r := &set.Rows[i]
		b, ok := scale[r.Key]
		if !ok || !r.Cells[col].Float.Valid {
			continue
		}
		r.Cells[col].Float.Float64 /= b
	}
	return nil
}

// TrimOpenAges removes rows that came from open-ended age bins.
func TrimOpenAges(set *SourceSet) int {
	kept := set.Rows[:0]
	dropped := 0
	for _, r := range set.Rows {
		if r.Open {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	set.Rows = kept
	return dropped
}
