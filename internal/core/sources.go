package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrMissingOrAmbiguousSource is returned when a source descriptor matches
// zero files or more than one.
var ErrMissingOrAmbiguousSource = errors.New("missing or ambiguous source")

// ErrUnsupportedFileType is returned for input files in a format no adapter reads.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// SourceDescriptor locates one input file deterministically: an explicit
// File, or a Pattern that must match exactly one entry of Dir.
type SourceDescriptor struct {
	Dir     string `yaml:"dir"`
	File    string `yaml:"file,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
	Sheet   string `yaml:"sheet,omitempty"`

	// Multiple allows a pattern to match several files, e.g. one per country.
	Multiple bool `yaml:"multiple,omitempty"`
}

// Validate checks the descriptor's structure without touching the filesystem.
func (d SourceDescriptor) Validate() error {
	if d.File == "" && d.Pattern == "" {
		return fmt.Errorf("descriptor for %q needs file or pattern", d.Dir)
	}
	if d.File != "" && d.Pattern != "" {
		return fmt.Errorf("descriptor for %q sets both file and pattern", d.Dir)
	}
	if d.Multiple && d.Pattern == "" {
		return fmt.Errorf("descriptor for %q: multiple needs a pattern", d.Dir)
	}
	if d.Pattern != "" {
		if _, err := filepath.Match(d.Pattern, ""); err != nil {
			return fmt.Errorf("descriptor for %q: bad pattern %q: %w", d.Dir, d.Pattern, err)
		}
	}
	return nil
}

// ResolveAll returns the files the descriptor names. Unless Multiple is set,
// exactly one file must match.
func (d SourceDescriptor) ResolveAll(root string) ([]string, error) {
	if !d.Multiple {
		path, err := d.Resolve(root)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	files, err := d.glob(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no file matching %q in %s", ErrMissingOrAmbiguousSource, d.Pattern, d.dir(root))
	}
	return files, nil
}

// Resolve returns the single file the descriptor names, relative to root
// when Dir is relative.
func (d SourceDescriptor) Resolve(root string) (string, error) {
	dir := d.dir(root)

	if d.File != "" {
		path := filepath.Join(dir, d.File)
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrMissingOrAmbiguousSource, path, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrMissingOrAmbiguousSource, path)
		}
		return path, nil
	}

	files, err := d.glob(root)
	if err != nil {
		return "", err
	}
	switch len(files) {
	case 1:
		return files[0], nil
	case 0:
		return "", fmt.Errorf("%w: no file matching %q in %s", ErrMissingOrAmbiguousSource, d.Pattern, dir)
	default:
		return "", fmt.Errorf("%w: %d files match %q in %s: %v", ErrMissingOrAmbiguousSource, len(files), d.Pattern, dir, files)
	}
}

func (d SourceDescriptor) dir(root string) string {
	if !filepath.IsAbs(d.Dir) && root != "" {
		return filepath.Join(root, d.Dir)
	}
	return d.Dir
}

func (d SourceDescriptor) glob(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir(root), d.Pattern))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", d.Pattern, err)
	}
	var files []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
