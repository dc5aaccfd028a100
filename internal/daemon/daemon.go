package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipguard/internal/config"
	"clipguard/internal/content"
	"clipguard/internal/events"
	"clipguard/internal/logging"
	"clipguard/internal/queue"
	"clipguard/internal/workflow"
)

// LockFileName is the daemon lock created in the log directory.
const LockFileName = "clipguard.lock"

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	queue    *queue.Store
	content  *content.Store
	workflow *workflow.Manager
	events   *events.Publisher

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	EventsActive bool
}

// New constructs a daemon around already opened stores. publisher may be nil.
func New(cfg *config.Config, queueStore *queue.Store, contentStore *content.Store, wf *workflow.Manager, publisher *events.Publisher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || queueStore == nil || contentStore == nil || wf == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		queue:    queueStore,
		content:  contentStore,
		workflow: wf,
		events:   publisher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api-server"))
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipguard daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("clipguard daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops the API and background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipguard daemon stopped")
}

// Close stops the daemon and drains the event publisher. The caller owns the
// database handle behind the stores.
func (d *Daemon) Close() error {
	d.Stop()
	if d.events != nil {
		d.events.Close()
	}
	return nil
}

// Enqueue schedules moderation for a video.
func (d *Daemon) Enqueue(ctx context.Context, videoID int64, assetID string) (*queue.Job, bool, error) {
	return d.workflow.Enqueue(ctx, videoID, assetID)
}

// Video returns a video with its post, or nils when the video does not exist.
func (d *Daemon) Video(ctx context.Context, id int64) (*content.Video, *content.Post, error) {
	video, err := d.content.GetVideo(ctx, id)
	if err != nil || video == nil {
		return nil, nil, err
	}
	if video.PostID == nil {
		return video, nil, nil
	}
	post, err := d.content.GetPost(ctx, *video.PostID)
	if err != nil {
		return nil, nil, err
	}
	return video, post, nil
}

// APIAddress returns the address the API listens on, once started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.queue.Path(),
		LockFilePath: d.lockPath,
		EventsActive: d.events != nil && d.events.Enabled(),
	}
}
