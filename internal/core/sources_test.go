package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestSourceDescriptor_Resolve(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "HFD"), 0o755))
	touch(t, filepath.Join(root, "HFD"), "asfrRR.txt", "readme.txt")

	path, err := SourceDescriptor{Dir: "HFD", Pattern: "*RR.txt"}.Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "HFD", "asfrRR.txt"), path)

	path, err = SourceDescriptor{Dir: "HFD", File: "readme.txt"}.Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "HFD", "readme.txt"), path)
}

func TestSourceDescriptor_ResolveFailures(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.txt", "b.txt")
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	tests := []struct {
		name string
		desc SourceDescriptor
	}{
		{name: "no match", desc: SourceDescriptor{Pattern: "*.csv"}},
		{name: "ambiguous", desc: SourceDescriptor{Pattern: "*.txt"}},
		{name: "missing file", desc: SourceDescriptor{File: "c.txt"}},
		{name: "directory", desc: SourceDescriptor{File: "sub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.desc.Resolve(root)
			assert.ErrorIs(t, err, ErrMissingOrAmbiguousSource)
		})
	}
}

func TestSourceDescriptor_ResolveAllMultiple(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "SWE.fltper_1x1.txt", "AUS.fltper_1x1.txt", "notes.md")
	require.NoError(t, os.Mkdir(filepath.Join(root, "X.fltper_1x1.txt"), 0o755))

	files, err := SourceDescriptor{Pattern: "*.fltper_1x1.txt", Multiple: true}.ResolveAll(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "AUS.fltper_1x1.txt"),
		filepath.Join(root, "SWE.fltper_1x1.txt"),
	}, files, "sorted, directories skipped")

	_, err = SourceDescriptor{Pattern: "*.none", Multiple: true}.ResolveAll(root)
	assert.ErrorIs(t, err, ErrMissingOrAmbiguousSource)
}

func TestSourceDescriptor_Validate(t *testing.T) {
	assert.NoError(t, SourceDescriptor{Dir: "HMD", Pattern: "*.txt"}.Validate())
	assert.Error(t, SourceDescriptor{Dir: "HMD"}.Validate())
	assert.Error(t, SourceDescriptor{File: "a", Pattern: "b"}.Validate())
	assert.Error(t, SourceDescriptor{File: "a", Multiple: true}.Validate())
	assert.Error(t, SourceDescriptor{Pattern: "[bad"}.Validate())
}
