package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// Sources locates every input file of a run, relative to DOWNLOAD_DIR.
type Sources struct {
	HMD          core.SourceDescriptor `yaml:"hmd"`
	HFD          core.SourceDescriptor `yaml:"hfd"`
	IncomeStatus core.SourceDescriptor `yaml:"income_status"`
	Samples      SampleSources         `yaml:"samples"`
}

// SampleSources lists the population-sample files and the code each is filed under.
type SampleSources struct {
	Dir   string       `yaml:"dir"`
	Files []SampleFile `yaml:"files"`
}

// SampleFile names one sample file.
type SampleFile struct {
	File string `yaml:"file"`
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

var sampleCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// DefaultSources mirrors the layout produced by "lifetable fetch".
func DefaultSources() *Sources {
	return &Sources{
		HMD: core.SourceDescriptor{Dir: "HMD", Pattern: "*_1x1/*.txt"},
		HFD: core.SourceDescriptor{Dir: "HFD", Pattern: "*RR.txt"},
		IncomeStatus: core.SourceDescriptor{
			Dir:   "WBLG",
			File:  "WorldBank_Country_LendingGroups.xlsx",
			Sheet: "Country Analytical History",
		},
		Samples: SampleSources{
			Dir: "HG",
			Files: []SampleFile{
				{File: "Ache - Hurtado & Hill.csv", Code: "ACH", Name: "Ache"},
				{File: "Hadza - Blurton Jones data.csv", Code: "HDZ", Name: "Hadza"},
				{File: "!Kung - data.csv", Code: "KUN", Name: "!Kung"},
			},
		},
	}
}

// LoadSources reads descriptors from path. A missing file yields the defaults;
// a present file replaces them section by section.
func LoadSources(path string) (*Sources, error) {
	src := DefaultSources()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return src, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file struct {
		HMD          *core.SourceDescriptor `yaml:"hmd"`
		HFD          *core.SourceDescriptor `yaml:"hfd"`
		IncomeStatus *core.SourceDescriptor `yaml:"income_status"`
		Samples      *SampleSources         `yaml:"samples"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if file.HMD != nil {
		src.HMD = *file.HMD
	}
	if file.HFD != nil {
		src.HFD = *file.HFD
	}
	if file.IncomeStatus != nil {
		src.IncomeStatus = *file.IncomeStatus
	}
	if file.Samples != nil {
		src.Samples = *file.Samples
	}
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	return src, nil
}

// Validate checks every descriptor. Returns all failures at once.
func (s *Sources) Validate() error {
	var errs []string

	for _, named := range []struct {
		name string
		d    core.SourceDescriptor
	}{
		{"hmd", s.HMD},
		{"hfd", s.HFD},
		{"income_status", s.IncomeStatus},
	} {
		name, d := named.name, named.d
		if d.Dir == "" {
			errs = append(errs, name+": dir must not be empty")
		}
		if err := d.Validate(); err != nil {
			errs = append(errs, name+": "+err.Error())
		}
	}

	if len(s.Samples.Files) > 0 && s.Samples.Dir == "" {
		errs = append(errs, "samples: dir must not be empty")
	}
	seen := make(map[string]bool)
	for _, f := range s.Samples.Files {
		if f.File == "" {
			errs = append(errs, fmt.Sprintf("samples: entry %q has no file", f.Code))
		}
		if !sampleCodeRegex.MatchString(f.Code) {
			errs = append(errs, fmt.Sprintf("samples: code %q must be three upper-case letters", f.Code))
		}
		if seen[f.Code] {
			errs = append(errs, fmt.Sprintf("samples: duplicate code %q", f.Code))
		}
		seen[f.Code] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid source descriptors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SampleDescriptors returns the sample files with paths under root. Files
// that do not exist are returned as well; the sample adapter reports and
// skips them.
func (s *Sources) SampleDescriptors(root string) []core.SampleDescriptor {
	dir := s.Samples.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	out := make([]core.SampleDescriptor, 0, len(s.Samples.Files))
	for _, f := range s.Samples.Files {
		out = append(out, core.SampleDescriptor{Path: filepath.Join(dir, f.File), Code: f.Code, Name: f.Name})
	}
	return out
}
