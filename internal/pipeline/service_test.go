package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// stubRunner walks through the phases and then blocks until release is
// closed or the run is cancelled.
type stubRunner struct {
	dir     string
	release chan struct{}
	err     error
}

func (r *stubRunner) Run(ctx context.Context, id uuid.UUID, onPhase func(Phase)) (*Result, error) {
	onPhase(PhaseLoading)
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	onPhase(PhaseExporting)
	table := &core.Table{Rows: []*core.Row{{}, {}}}
	return &Result{ID: id, Dir: r.dir, Artifacts: []string{LifeTableArtifact}, Table: table}, nil
}

func newTestService(r Runner) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(r, NewLimiter(1, 50*time.Millisecond), time.Minute, logger)
}

func TestService_RunLifecycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LifeTableArtifact), []byte("x"), 0o644))
	runner := &stubRunner{dir: dir, release: make(chan struct{})}
	svc := newTestService(runner)

	id, err := svc.Start(context.Background())
	require.NoError(t, err)

	updates, err := svc.Subscribe(id)
	require.NoError(t, err)

	close(runner.release)
	res, err := svc.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, dir, res.Dir)

	var last Progress
	for p := range updates {
		last = p
	}
	assert.Equal(t, PhaseComplete, last.Phase)

	p, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, p.Phase)
	assert.Equal(t, 2, p.Rows)
	assert.NotNil(t, p.FinishedAt)

	path, err := svc.Artifact(id, LifeTableArtifact)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LifeTableArtifact), path)

	_, err = svc.Artifact(id, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	assert.Len(t, svc.List(), 1)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_TooManyRuns(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	svc := newTestService(runner)

	id, err := svc.Start(context.Background())
	require.NoError(t, err)

	_, err = svc.Start(context.Background())
	assert.ErrorIs(t, err, ErrTooManyRuns)
	assert.Equal(t, 1, svc.LimiterStatus().Active)

	close(runner.release)
	_, err = svc.Wait(context.Background(), id)
	require.NoError(t, err)
}

func TestService_Cancel(t *testing.T) {
	svc := newTestService(&stubRunner{release: make(chan struct{})})

	id, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(id))

	_, err = svc.Wait(context.Background(), id)
	assert.ErrorIs(t, err, context.Canceled)

	p, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, p.Phase)
	assert.Equal(t, "RUN003", p.ErrorCode)
}

func TestService_Failure(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{}), err: missingSourceErr()}
	close(runner.release)
	svc := newTestService(runner)

	id, err := svc.Start(context.Background())
	require.NoError(t, err)
	_, err = svc.Wait(context.Background(), id)
	require.Error(t, err)

	p, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, p.Phase)
	assert.Equal(t, "SRC001", p.ErrorCode)

	_, err = svc.Artifact(id, LifeTableArtifact)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func missingSourceErr() error {
	return errors.Join(errors.New("hfd"), core.ErrMissingOrAmbiguousSource)
}

func TestService_UnknownRun(t *testing.T) {
	svc := newTestService(&stubRunner{})

	_, err := svc.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Get(uuid.NewString())
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, svc.Cancel(uuid.NewString()), ErrRunNotFound)
	_, err = svc.Subscribe(uuid.NewString())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestService_ShutdownCancelsOnDeadline(t *testing.T) {
	svc := newTestService(&stubRunner{release: make(chan struct{})})
	id, err := svc.Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Shutdown(ctx), context.DeadlineExceeded)

	_, err = svc.Wait(context.Background(), id)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_RejectsRunsAfterShutdown(t *testing.T) {
	svc := newTestService(&stubRunner{release: make(chan struct{})})
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := svc.Start(context.Background())
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Empty(t, svc.List())
	assert.Zero(t, svc.LimiterStatus().Active, "a rejected start must not hold a slot")
	assert.Equal(t, "RUN005", core.MapError(err).Code)
}
