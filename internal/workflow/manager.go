package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipguard/internal/config"
	"clipguard/internal/logging"
	"clipguard/internal/notifications"
	"clipguard/internal/queue"
)

// Manager coordinates queue processing across a bounded worker pool.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	pipeline     Pipeline
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	workers      int
	now          func() time.Time

	heartbeat heartbeats
	wake      chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for retry scheduling.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPollInterval overrides how long an idle worker waits before checking
// the queue again when no enqueue wakes it.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.pollInterval = interval
		}
	}
}

// NewManager constructs a workflow manager. notifier may be nil.
func NewManager(cfg *config.Config, store *queue.Store, pipeline Pipeline, notifier notifications.Service, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	workers := max(cfg.Workflow.Workers, 1)
	m := &Manager{
		cfg:          cfg,
		store:        store,
		pipeline:     pipeline,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		workers:      workers,
		now:          time.Now,
		heartbeat: heartbeats{
			store:    store,
			logger:   logger,
			interval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
			timeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
			now:      time.Now,
		},
		wake: make(chan struct{}, workers),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	return m
}

// Enqueue persists a job for the video and wakes an idle worker. It returns
// the existing job when the video already has one queued or running. The
// outcome of the job is never reported to the caller.
func (m *Manager) Enqueue(ctx context.Context, videoID int64, assetID string) (*queue.Job, bool, error) {
	job, created, err := m.store.Enqueue(ctx, videoID, assetID, m.cfg.Workflow.MaxAttempts)
	if err != nil {
		return nil, false, err
	}
	if created {
		m.logger.Info("job enqueued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldVideoID, videoID),
			logging.String(logging.FieldAssetID, job.AssetID),
			logging.String(logging.FieldEventType, "job_enqueued"),
		)
	} else {
		m.logger.Debug("job already active for video",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldVideoID, videoID),
			logging.String("status", string(job.Status)),
		)
	}
	m.Wake()
	return job, created, nil
}

// Wake nudges idle workers to check the queue now.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
