package transcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hlsforge/internal/config"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
)

const managerComponent = "transcode-manager"

// defaultPollInterval bounds how long a persisted pending job can wait when
// its wake signal was dropped because the queue channel was full.
const defaultPollInterval = 5 * time.Second

// Manager owns the worker pool that drains pending jobs. Submission goes
// through the embedded dispatcher so API and CLI callers share validation.
type Manager struct {
	cfg          *config.Config
	store        *library.Store
	runner       *Runner
	logger       *slog.Logger
	dispatcher   *Dispatcher
	jobs         chan string
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a manager with its dispatcher and job queue.
func NewManager(cfg *config.Config, store *library.Store, runner *Runner, logger *slog.Logger) *Manager {
	depth := cfg.Workflow.QueueDepth
	if depth <= 0 {
		depth = 16
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		logger:       logging.WithComponent(logger, managerComponent),
		jobs:         make(chan string, depth),
		pollInterval: defaultPollInterval,
	}
	m.dispatcher = NewDispatcher(cfg, store, m.enqueue)
	return m
}

// Submit validates and persists a new job, then signals the worker pool.
func (m *Manager) Submit(ctx context.Context, videoID int64, segmentSeconds int) (*library.Job, error) {
	return m.dispatcher.Submit(ctx, videoID, segmentSeconds)
}

// enqueue never blocks: a full channel drops the signal and the pending row
// is picked up by the poll loop instead.
func (m *Manager) enqueue(jobID string) {
	select {
	case m.jobs <- jobID:
	default:
	}
}

// Start fails over stale jobs from a previous process and launches the
// worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("transcode manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	if reset, err := m.store.ResetStuckJobs(runCtx); err != nil {
		m.logger.Warn("stale job recovery failed; stuck jobs may remain",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check library database access"),
		)
	} else if reset > 0 {
		m.logger.Info("failed stale jobs from previous run", logging.Int64("count", reset))
	}

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-m.jobs:
			m.runJob(ctx, logger, jobID)
		case <-time.After(m.pollInterval):
			jobID, err := m.nextPending(ctx)
			if err != nil {
				logger.Error("failed to poll for pending jobs",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check library database access"),
				)
				continue
			}
			if jobID == "" {
				continue
			}
			m.runJob(ctx, logger, jobID)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, logger *slog.Logger, jobID string) {
	if err := m.runner.Run(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("job run failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
}

func (m *Manager) nextPending(ctx context.Context) (string, error) {
	pending, err := m.store.ListJobs(ctx, library.JobStatusPending)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", nil
	}
	return pending[0].ID, nil
}
