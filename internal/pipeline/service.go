package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/lifetable/internal/core"
)

var (
	// ErrRunNotFound is returned for unknown or malformed run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrArtifactNotFound is returned when a run has no artifact of that name.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("run service is shutting down")
)

// Runner executes one build. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, id uuid.UUID, onPhase func(Phase)) (*Result, error)
}

// Service runs builds in the background and tracks them by ID. Runs are
// kept in memory for the life of the process.
type Service struct {
	runner  Runner
	limiter *Limiter
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	runs   map[uuid.UUID]*activeRun
	wg     sync.WaitGroup
	closed bool // set by Shutdown; guarded by mu
}

type activeRun struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	progress  Progress
	result    *Result
	err       error
	listeners []chan Progress
}

// NewService creates a service. A zero timeout leaves runs unbounded.
func NewService(runner Runner, limiter *Limiter, timeout time.Duration, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = NewLimiter(DefaultMaxConcurrentRuns, DefaultMaxWaitTime)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:  runner,
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
		runs:    make(map[uuid.UUID]*activeRun),
	}
}

// Start begins a run and returns its ID immediately. It waits for a free
// slot using ctx, so a cancelled request never starts a run. After Shutdown
// has been called it returns ErrShuttingDown.
func (s *Service) Start(ctx context.Context) (string, error) {
	if s.isClosed() {
		return "", ErrShuttingDown
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New()
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	run := &activeRun{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: Progress{
			RunID:     id.String(),
			Phase:     PhaseQueued,
			StartedAt: time.Now(),
		},
	}

	// Registration and wg.Add share the lock with Shutdown's closed flag, so
	// Shutdown never waits on a WaitGroup that can still grow.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		s.limiter.Release()
		return "", ErrShuttingDown
	}
	s.runs[id] = run
	s.wg.Add(1)
	s.mu.Unlock()

	go s.process(runCtx, run)

	return id.String(), nil
}

func (s *Service) process(ctx context.Context, run *activeRun) {
	defer s.wg.Done()
	defer close(run.done)
	defer s.limiter.Release()
	defer run.cancel()

	logger := s.logger.With("run_id", run.id.String())
	res, err := s.runner.Run(ctx, run.id, run.setPhase)
	run.finish(res, err)

	p := run.snapshot()
	if err != nil {
		logger.Warn("run ended with error", "phase", p.Phase, "error", err)
		return
	}
	logger.Info("run finished", "rows", p.Rows, "dir", p.Dir)
}

// Get returns the current progress of a run.
func (s *Service) Get(id string) (Progress, error) {
	run, err := s.lookup(id)
	if err != nil {
		return Progress{}, err
	}
	return run.snapshot(), nil
}

// List returns all known runs, newest first.
func (s *Service) List() []Progress {
	s.mu.RLock()
	out := make([]Progress, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Wait blocks until the run finishes or ctx ends, and returns its result
// and run error.
func (s *Service) Wait(ctx context.Context, id string) (*Result, error) {
	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, run.err
}

// Cancel stops an in-progress run. Cancelling a finished run is a no-op.
func (s *Service) Cancel(id string) error {
	run, err := s.lookup(id)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// Subscribe returns a channel of progress updates. The current state is
// sent first; the channel is closed when the run finishes.
func (s *Service) Subscribe(id string) (<-chan Progress, error) {
	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)
	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	if run.progress.Phase.Terminal() {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// Artifact returns the path of a file written by a run.
func (s *Service) Artifact(id, name string) (string, error) {
	run, err := s.lookup(id)
	if err != nil {
		return "", err
	}

	p := run.snapshot()
	if p.Dir == "" || !slices.Contains(p.Artifacts, name) {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return filepath.Join(p.Dir, name), nil
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// Shutdown stops accepting runs and waits for in-progress ones. If ctx ends
// first, the remaining runs are cancelled and ctx's error is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		s.mu.RLock()
		for _, run := range s.runs {
			run.cancel()
		}
		s.mu.RUnlock()
		return ctx.Err()
	}
}

func (s *Service) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Service) lookup(id string) (*activeRun, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	s.mu.RLock()
	run, ok := s.runs[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (run *activeRun) snapshot() Progress {
	run.mu.Lock()
	defer run.mu.Unlock()

	p := run.progress
	p.Artifacts = slices.Clone(p.Artifacts)
	return p
}

func (run *activeRun) setPhase(phase Phase) {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.progress.Phase = phase
	run.notify()
}

func (run *activeRun) finish(res *Result, err error) {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.result = res
	run.err = err
	now := time.Now()
	run.progress.FinishedAt = &now
	run.progress.Phase = statusOf(err)
	if res != nil {
		run.progress.Dir = res.Dir
		run.progress.Artifacts = res.Artifacts
		run.progress.Issues = res.IssueCounts()
		if res.Table != nil {
			run.progress.Rows = len(res.Table.Rows)
		}
	}
	if err != nil {
		msg := core.MapError(err)
		run.progress.Error = msg.Message
		run.progress.ErrorCode = msg.Code
	}

	run.notify()
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
}

// notify sends the current progress to every listener. Must hold run.mu.
func (run *activeRun) notify() {
	for _, ch := range run.listeners {
		select {
		case ch <- run.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}
