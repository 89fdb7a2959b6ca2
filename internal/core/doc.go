// Package core provides the demographic merge and derivation engine.
//
// This package turns the canonical rows of several independently formatted
// demographic sources into one dense life table. It holds no global state:
// every run passes an explicit [Settings] value, and every table is owned by
// the run that built it.
//
// # Data Flow
//
//  1. Adapters (package sources) produce [SourceSet] values keyed by
//     [PopulationKey] and age, with missing values as Valid=false cells
//  2. [NormalizeKey] splits raw codes such as "DEUTNP" into base and suffix
//  3. [BuildGrid] intersects the mortality and fertility key sets and crosses
//     them with the configured [AgeRange]
//  4. [Merge] left-joins each set onto the grid, reporting duplicate keys
//  5. [JoinAttributes] adds (base, year) attributes such as income status
//  6. [Derive] appends lxmx, dx, qx, sx and vx per population group
//  7. [WriteCSV] serialises the table in grid order
//
// # Source Registry
//
// Adapters register at init time using [Register]:
//
//	core.Register(core.SourceDefinition{
//	    Info: core.SourceInfo{Key: "hmd", Role: core.RoleMortality, Label: "Human Mortality Database"},
//	    FieldSpecs: []core.FieldSpec{{Name: "PopName", Required: true}},
//	    Load: loadHMD,
//	})
//
// # Data Quality
//
// Row-level problems never abort a run. They are recorded in a [Report] as
// [Issue] values: malformed keys (row dropped), duplicate join keys (row kept,
// join fans out), coerced or rescaled values, and empty intersections.
// Structural failures such as a missing required column or an unresolvable
// source fail the run and map to error codes via [MapError].
package core
