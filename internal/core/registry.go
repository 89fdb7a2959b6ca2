package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// SourceRole tells the pipeline where an adapter's output goes.
type SourceRole string

const (
	RoleMortality SourceRole = "mortality" // lx series
	RoleFertility SourceRole = "fertility" // mx series
	RoleSample    SourceRole = "sample"    // both lx and mx, e.g. hunter-gatherer tables
	RoleAttribute SourceRole = "attribute" // keyed by (base, year) only
)

// SourceInfo contains descriptive information about a source.
type SourceInfo struct {
	Key      string // Unique identifier: "hmd"
	Role     SourceRole
	Label    string // Display name: "Human Mortality Database"
	Artifact string // Intermediate CSV name: "hmd.csv"
	Order    int    // Load order within the run
}

// LoadRequest is handed to an adapter's Load function.
type LoadRequest struct {
	Settings Settings
	Report   *Report
	Paths    []string // Resolved input files
	Sheet    string   // Worksheet name for spreadsheet sources
	Samples  []SampleDescriptor
}

// SampleDescriptor names one population-sample file and its code.
type SampleDescriptor struct {
	Path string
	Code string
	Name string
}

// LoadFunc produces a canonical row set. Used by mortality, fertility and sample roles.
type LoadFunc func(ctx context.Context, req LoadRequest) (*SourceSet, error)

// LoadAttributesFunc produces an attribute set. Used by the attribute role.
type LoadAttributesFunc func(ctx context.Context, req LoadRequest) (*AttributeSet, error)

// SourceDefinition contains everything needed to load a source.
type SourceDefinition struct {
	Info           SourceInfo
	FieldSpecs     []FieldSpec
	Load           LoadFunc
	LoadAttributes LoadAttributesFunc
}

var (
	registry   = make(map[string]SourceDefinition)
	registryMu sync.RWMutex
)

// Register adds a source definition to the registry.
// Panics if a source with the same key is already registered or if the
// definition has no loader for its role.
func Register(def SourceDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("source already registered: %s", def.Info.Key))
	}
	if def.Info.Role == RoleAttribute && def.LoadAttributes == nil {
		panic(fmt.Sprintf("attribute source %s has no LoadAttributes", def.Info.Key))
	}
	if def.Info.Role != RoleAttribute && def.Load == nil {
		panic(fmt.Sprintf("source %s has no Load", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// Get returns a source definition by key.
func Get(key string) (SourceDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered sources, sorted by load order then key.
func All() []SourceDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Order != result[j].Info.Order {
			return result[i].Info.Order < result[j].Info.Order
		}
		return result[i].Info.Key < result[j].Info.Key
	})
	return result
}

// SourceCount returns the number of registered sources.
func SourceCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

