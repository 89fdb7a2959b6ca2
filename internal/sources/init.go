// Package sources registers all source adapters with the core registry.
// Import this package to ensure all sources are registered.
//
// Each adapter turns one provider's published layout into canonical rows:
// population code, year, integer age and value columns, with missing values
// as Valid=false cells. Row-level problems are reported, never fatal.
package sources

// Registry keys and intermediate artifact names.
const (
	KeyHMD          = "hmd"
	KeyHFD          = "hfd"
	KeySamples      = "hg"
	KeyIncomeStatus = "income_status"
)
