package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/lifetable/internal/config"
	"github.com/JonMunkholm/lifetable/internal/core"
	"github.com/JonMunkholm/lifetable/internal/sources"
)

// inputs is everything the adapters produced for one run.
type inputs struct {
	mortality  *core.SourceSet
	fertility  *core.SourceSet
	attributes []*core.AttributeSet
	countries  *core.AttributeSet
	artifacts  []artifact
}

type artifact struct {
	name  string
	write func(io.Writer) error
}

// load runs every registered adapter in order. Mortality and fertility
// series are projected onto lx and mx; samples feed both sides so that they
// survive the grid intersection.
func (p *Pipeline) load(ctx context.Context, rep *core.Report, logger *slog.Logger) (*inputs, error) {
	in := &inputs{
		mortality: &core.SourceSet{Name: "mortality", Columns: []core.Column{core.FloatColumn(core.ColLx)}},
		fertility: &core.SourceSet{Name: "fertility", Columns: []core.Column{core.FloatColumn(core.ColMx)}},
	}

	for _, def := range core.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := p.request(def, rep)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Info.Key, err)
		}

		started := time.Now()
		var n int
		if def.Info.Role == core.RoleAttribute {
			attrs, err := def.LoadAttributes(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", describe(def), err)
			}
			n = len(attrs.Rows)
			in.attributes = append(in.attributes, attrs)
			if def.Info.Key == sources.KeyIncomeStatus {
				in.countries = attrs
			}
			in.add(def.Info.Artifact, func(w io.Writer) error { return core.WriteAttributeCSV(w, attrs) })
		} else {
			set, err := def.Load(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", describe(def), err)
			}
			n = len(set.Rows)
			if err := in.route(def.Info.Role, set); err != nil {
				return nil, err
			}
			in.add(def.Info.Artifact, func(w io.Writer) error { return core.WriteSourceCSV(w, set) })
		}

		p.Metrics.AddSourceRows(def.Info.Key, n)
		logger.Info("source loaded",
			"source", def.Info.Key,
			"files", len(req.Paths)+len(req.Samples),
			"rows", n,
			"duration", time.Since(started),
		)
	}
	return in, nil
}

func (in *inputs) route(role core.SourceRole, set *core.SourceSet) error {
	switch role {
	case core.RoleMortality:
		return in.mortality.Append(set.Project(set.Name, core.ColLx))
	case core.RoleFertility:
		return in.fertility.Append(set.Project(set.Name, core.ColMx))
	case core.RoleSample:
		if err := in.mortality.Append(set.Project(set.Name, core.ColLx)); err != nil {
			return err
		}
		return in.fertility.Append(set.Project(set.Name, core.ColMx))
	default:
		return fmt.Errorf("source %s: unknown role %q", set.Name, role)
	}
}

func (in *inputs) add(name string, write func(io.Writer) error) {
	if name == "" {
		return
	}
	in.artifacts = append(in.artifacts, artifact{name: name, write: write})
}

// request resolves the files an adapter reads. Required descriptors that
// match nothing fail with core.ErrMissingOrAmbiguousSource; sample files are
// handed over unresolved because the sample adapter skips missing ones.
func (p *Pipeline) request(def core.SourceDefinition, rep *core.Report) (core.LoadRequest, error) {
	srcs := p.Sources
	if srcs == nil {
		srcs = config.DefaultSources()
	}
	req := core.LoadRequest{Settings: p.Settings, Report: rep}

	var desc core.SourceDescriptor
	switch def.Info.Key {
	case sources.KeyHMD:
		desc = srcs.HMD
	case sources.KeyHFD:
		desc = srcs.HFD
	case sources.KeyIncomeStatus:
		desc = srcs.IncomeStatus
	case sources.KeySamples:
		req.Samples = srcs.SampleDescriptors(p.DownloadDir)
		return req, nil
	default:
		return req, fmt.Errorf("%w: no descriptor configured", core.ErrMissingOrAmbiguousSource)
	}

	paths, err := desc.ResolveAll(p.DownloadDir)
	if err != nil {
		return req, err
	}
	req.Paths = paths
	req.Sheet = desc.Sheet
	return req, nil
}
