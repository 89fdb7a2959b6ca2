package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/lifetable/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func request(paths ...string) core.LoadRequest {
	return core.LoadRequest{
		Settings: core.DefaultSettings(),
		Report:   core.NewReport(nil),
		Paths:    paths,
	}
}

func rowAt(set *core.SourceSet, key core.PopulationKey, age int) (core.SourceRow, bool) {
	for _, r := range set.Rows {
		if r.Key == key && r.Age == age {
			return r, true
		}
	}
	return core.SourceRow{}, false
}

func mustKey(t *testing.T, raw string, year int) core.PopulationKey {
	t.Helper()
	k, err := core.ParsePopulationKey(raw, year)
	require.NoError(t, err)
	return k
}
