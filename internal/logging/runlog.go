package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// RunLogFile is the name of the per-run log inside a run directory.
const RunLogFile = "log_file.log"

// RunLogger writes to the process logger and to a run's own log file.
type RunLogger struct {
	*slog.Logger
	file *os.File
}

// NewRunLogger opens dir/log_file.log and returns a logger that writes every
// record to both base and the file. The file always logs at debug level in
// text format so a run can be diagnosed after the fact.
func NewRunLogger(base *slog.Logger, dir string) (*RunLogger, error) {
	f, err := os.OpenFile(filepath.Join(dir, RunLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if base == nil {
		base = slog.Default()
	}
	h := fanout{base.Handler(), slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})}
	return &RunLogger{Logger: slog.New(h), file: f}, nil
}

// Close flushes and closes the run log file.
func (l *RunLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
