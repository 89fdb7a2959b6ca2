package core

// report.go collects row-level data-quality issues for one run.
//
// None of these abort the run. Row-level failures drop the row, warnings keep
// it. The pipeline logs each issue as it is added and exports counts as metrics.

import (
	"fmt"
	"log/slog"
	"sync"
)

// IssueKind classifies a data-quality issue.
type IssueKind string

const (
	IssueMalformedKey      IssueKind = "malformed_key"
	IssueDuplicateKey      IssueKind = "duplicate_key"
	IssueDataQuality       IssueKind = "data_quality"
	IssueEmptyIntersection IssueKind = "empty_intersection"
	IssueMissingSource     IssueKind = "missing_source"
)

// Issue is a single reported problem.
type Issue struct {
	Kind    IssueKind
	Source  string
	Key     string // Population key or raw code, if any
	Age     *int
	Count   int // Rows sharing a duplicate key
	Message string
}

func (i Issue) String() string {
	s := fmt.Sprintf("[%s] %s", i.Kind, i.Source)
	if i.Key != "" {
		s += " " + i.Key
	}
	if i.Age != nil {
		s += fmt.Sprintf(" age %d", *i.Age)
	}
	return s + ": " + i.Message
}

// Report accumulates issues. Safe for concurrent use; a nil *Report discards.
type Report struct {
	logger *slog.Logger

	mu     sync.Mutex
	issues []Issue
}

// NewReport creates a report that also logs each issue to logger (may be nil).
func NewReport(logger *slog.Logger) *Report {
	return &Report{logger: logger}
}

// Add records an issue.
func (r *Report) Add(i Issue) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.issues = append(r.issues, i)
	r.mu.Unlock()

	if r.logger == nil {
		return
	}
	attrs := []any{"kind", string(i.Kind), "source", i.Source}
	if i.Key != "" {
		attrs = append(attrs, "key", i.Key)
	}
	if i.Age != nil {
		attrs = append(attrs, "age", *i.Age)
	}
	if i.Count > 0 {
		attrs = append(attrs, "count", i.Count)
	}
	if i.Kind == IssueEmptyIntersection {
		r.logger.Info(i.Message, attrs...)
		return
	}
	r.logger.Warn(i.Message, attrs...)
}

// Warnf records a data-quality warning.
func (r *Report) Warnf(source, key string, format string, args ...any) {
	r.Add(Issue{Kind: IssueDataQuality, Source: source, Key: key, Message: fmt.Sprintf(format, args...)})
}

// Issues returns a copy of all recorded issues.
func (r *Report) Issues() []Issue {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Count returns the number of issues of the given kind.
func (r *Report) Count(kind IssueKind) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, i := range r.issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns issue totals by kind.
func (r *Report) Counts() map[IssueKind]int {
	out := make(map[IssueKind]int)
	for _, i := range r.Issues() {
		out[i.Kind]++
	}
	return out
}

func intPtr(v int) *int { return &v }
