package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for pipeline runs.
type Metrics struct {
	// Run outcomes by status: "complete", "failed", "cancelled"
	RunOutcome *prometheus.CounterVec

	// Wall time of a full run
	RunDuration prometheus.Histogram

	// Runs currently executing
	RunsInProgress prometheus.Gauge

	// Canonical rows loaded, by source
	SourceRows *prometheus.CounterVec

	// Data-quality issues, by kind
	Issues *prometheus.CounterVec

	// Rows in the most recent life table
	LifeTableRows prometheus.Gauge
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifetable_runs_total",
			Help: "Total pipeline runs by final status",
		}, []string{"status"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifetable_run_duration_seconds",
			Help:    "Duration of a full pipeline run including exports",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),

		RunsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lifetable_runs_in_progress",
			Help: "Pipeline runs currently executing",
		}),

		SourceRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifetable_source_rows_total",
			Help: "Canonical rows loaded by source",
		}, []string{"source"}),

		Issues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifetable_issues_total",
			Help: "Data-quality issues reported by kind",
		}, []string{"kind"}),

		LifeTableRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lifetable_life_table_rows",
			Help: "Rows in the most recently produced life table",
		}),
	}
}

// RunStarted marks a run as executing.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.RunsInProgress.Inc()
	}
}

// RunFinished records a run's outcome and duration.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m != nil {
		m.RunsInProgress.Dec()
		m.RunOutcome.WithLabelValues(status).Inc()
		m.RunDuration.Observe(d.Seconds())
	}
}

// AddSourceRows records rows loaded from a source.
func (m *Metrics) AddSourceRows(source string, n int) {
	if m != nil {
		m.SourceRows.WithLabelValues(source).Add(float64(n))
	}
}

// AddIssues records issue counts by kind.
func (m *Metrics) AddIssues(counts map[string]int) {
	if m != nil {
		for kind, n := range counts {
			m.Issues.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// SetLifeTableRows records the size of the latest life table.
func (m *Metrics) SetLifeTableRows(n int) {
	if m != nil {
		m.LifeTableRows.Set(float64(n))
	}
}
