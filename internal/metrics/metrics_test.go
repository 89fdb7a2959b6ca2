package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RunLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInProgress))

	m.AddSourceRows("hmd", 222)
	m.AddSourceRows("hmd", 3)
	m.AddIssues(map[string]int{"duplicate_key": 2, "data_quality": 1})
	m.SetLifeTableRows(111)
	m.RunFinished("complete", 2*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunOutcome.WithLabelValues("complete")))
	assert.Equal(t, 225.0, testutil.ToFloat64(m.SourceRows.WithLabelValues("hmd")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Issues.WithLabelValues("duplicate_key")))
	assert.Equal(t, 111.0, testutil.ToFloat64(m.LifeTableRows))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.RunFinished("failed", time.Second)
		m.AddSourceRows("hfd", 1)
		m.AddIssues(map[string]int{"x": 1})
		m.SetLifeTableRows(1)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
