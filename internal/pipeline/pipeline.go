// Package pipeline runs the life-table build end to end: it loads every
// registered source, merges them onto the age grid, derives the life-table
// columns and writes the run's artifacts.
//
// Each run owns its tables from start to finish. The [Service] runs builds in
// the background and bounds how many execute at once with a [Limiter].
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/lifetable/internal/config"
	"github.com/JonMunkholm/lifetable/internal/core"
	"github.com/JonMunkholm/lifetable/internal/logging"
	"github.com/JonMunkholm/lifetable/internal/metrics"
	"github.com/JonMunkholm/lifetable/internal/store"
)

// Artifact names written to every run directory, besides each source's own.
const (
	LifeTableArtifact    = "life_table.csv"
	CountryTableArtifact = "country_table.csv"
)

// Recorder persists finished runs. *store.Store satisfies it.
type Recorder interface {
	SaveRun(ctx context.Context, run store.RunRecord, table *core.Table) error
}

// Pipeline holds everything one run needs. It is safe to share between
// concurrent runs; no field is mutated by Run.
type Pipeline struct {
	Settings    core.Settings
	Sources     *config.Sources
	DownloadDir string
	OutputDir   string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics // Optional
	Recorder    Recorder         // Optional
}

// New builds a pipeline from the loaded configuration.
func New(cfg *config.Config, sources *config.Sources, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Settings:    cfg.Engine(),
		Sources:     sources,
		DownloadDir: cfg.Paths.DownloadDir,
		OutputDir:   cfg.Paths.OutputDir,
		Logger:      logger,
	}
}

// Result describes a finished run.
type Result struct {
	ID         uuid.UUID
	Dir        string
	Artifacts  []string // File names inside Dir, in write order
	Table      *core.Table
	Issues     []core.Issue
	StartedAt  time.Time
	FinishedAt time.Time

	counts map[core.IssueKind]int
}

// IssueCounts returns issue totals by kind.
func (r *Result) IssueCounts() map[string]int {
	out := make(map[string]int, len(r.counts))
	for kind, n := range r.counts {
		out[string(kind)] = n
	}
	return out
}

// Run executes one build. onPhase, if non-nil, is called as the run moves
// between phases. Row-level problems are returned in Result.Issues; only
// structural failures return an error.
func (p *Pipeline) Run(ctx context.Context, id uuid.UUID, onPhase func(Phase)) (res *Result, err error) {
	if onPhase == nil {
		onPhase = func(Phase) {}
	}
	started := time.Now()
	p.Metrics.RunStarted()
	defer func() {
		p.Metrics.RunFinished(string(statusOf(err)), time.Since(started))
	}()

	if err := p.Settings.Ages.Validate(); err != nil {
		return nil, err
	}

	dir, err := NextRunDir(p.OutputDir)
	if err != nil {
		return nil, err
	}
	runLog, err := logging.NewRunLogger(p.logger().With("run_id", id.String()), dir)
	if err != nil {
		return nil, err
	}
	defer runLog.Close()
	logger := runLog.Logger

	logger.Info("run started",
		"dir", dir,
		"min_age", p.Settings.Ages.Min,
		"max_age", p.Settings.Ages.Max,
		"include_edge_data", p.Settings.IncludeEdgeData,
	)

	rep := core.NewReport(logger)
	res = &Result{ID: id, Dir: dir, StartedAt: started}
	defer func() {
		res.Issues = rep.Issues()
		res.counts = rep.Counts()
		res.FinishedAt = time.Now()
		p.Metrics.AddIssues(res.IssueCounts())
		if err != nil {
			logger.Error("run failed", "error", err, "code", core.MapError(err).Code)
		}
		p.record(logger, res, err)
	}()

	onPhase(PhaseLoading)
	in, err := p.load(ctx, rep, logger)
	if err != nil {
		return res, err
	}
	for _, a := range in.artifacts {
		if err := writeArtifact(dir, a.name, a.write); err != nil {
			return res, err
		}
		res.Artifacts = append(res.Artifacts, a.name)
	}

	onPhase(PhaseMerging)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	grid, err := core.BuildGrid(in.mortality, in.fertility, p.Settings.Ages, rep)
	if err != nil {
		return res, err
	}
	table, err := core.Merge(grid, rep, in.mortality, in.fertility)
	if err != nil {
		return res, err
	}
	logger.Info("tables merged", "population_keys", len(grid.Keys), "rows", len(table.Rows))

	// Derived columns follow lx and mx; attribute columns go last.
	onPhase(PhaseDeriving)
	if err := core.Derive(table); err != nil {
		return res, err
	}
	for _, attrs := range in.attributes {
		core.JoinAttributes(table, attrs, rep)
	}
	res.Table = table
	p.Metrics.SetLifeTableRows(len(table.Rows))

	onPhase(PhaseExporting)
	if err := writeArtifact(dir, LifeTableArtifact, func(w io.Writer) error { return core.WriteCSV(w, table) }); err != nil {
		return res, err
	}
	res.Artifacts = append(res.Artifacts, LifeTableArtifact)

	if in.countries != nil {
		if err := writeArtifact(dir, CountryTableArtifact, func(w io.Writer) error { return core.WriteAttributeCSV(w, in.countries) }); err != nil {
			return res, err
		}
		res.Artifacts = append(res.Artifacts, CountryTableArtifact)
	}

	logger.Info("run complete",
		"rows", len(table.Rows),
		"issues", len(rep.Issues()),
		"duplicate_keys", rep.Count(core.IssueDuplicateKey),
		"duration", time.Since(started),
	)
	return res, nil
}

// record persists the run when a recorder is configured. Persistence
// failures are logged; the artifacts on disk are the primary output.
func (p *Pipeline) record(logger *slog.Logger, res *Result, runErr error) {
	if p.Recorder == nil {
		return
	}
	rec := store.RunRecord{
		ID:         res.ID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Status:     string(statusOf(runErr)),
		Settings:   p.Settings,
		OutputDir:  res.Dir,
		IssueCount: len(res.Issues),
	}
	if res.Table != nil {
		rec.RowCount = len(res.Table.Rows)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	// The run context may already be cancelled; persistence gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	table := res.Table
	if runErr != nil {
		table = nil
	}
	if err := p.Recorder.SaveRun(ctx, rec, table); err != nil {
		logger.Error("failed to persist run", "error", err)
		return
	}
	logger.Info("run persisted", "rows", rec.RowCount)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func statusOf(err error) Phase {
	switch {
	case err == nil:
		return PhaseComplete
	case errors.Is(err, context.Canceled):
		return PhaseCancelled
	default:
		return PhaseFailed
	}
}

// describe renders a source for log lines.
func describe(def core.SourceDefinition) string {
	return fmt.Sprintf("%s (%s)", def.Info.Label, def.Info.Key)
}
