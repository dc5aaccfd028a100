// Package daemonctl controls a running clipguard daemon from another process:
// signalling it through its pid file and talking to its HTTP API.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipguard/internal/api"
	"clipguard/internal/config"
	"clipguard/internal/content"
	"clipguard/internal/daemon"
	"clipguard/internal/daemonrun"
	"clipguard/internal/database"
	"clipguard/internal/queue"
)

// ErrDaemonNotRunning indicates there is no live daemon process or API.
var ErrDaemonNotRunning = errors.New("daemon not running")

// PIDPath returns the pid file location for cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, daemonrun.PIDFileName)
}

// LockPath returns the lock file location for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, daemon.LockFileName)
}

// ReadPID parses the pid file. A missing file yields ErrDaemonNotRunning.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrDaemonNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", path)
	}
	return pid, nil
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// StopResult captures the daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop sends SIGTERM to the daemon and waits up to gracePeriod for it to
// exit, escalating to SIGKILL and cleaning the pid and lock files after that.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pidPath := PIDPath(cfg)
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if !ProcessAlive(pid) {
		_ = os.Remove(pidPath)
		return StopResult{}, ErrDaemonNotRunning
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if waitForExit(pid, gracePeriod) {
		return result, nil
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	_ = os.Remove(LockPath(cfg))
	result.ForcedKill = true
	return result, nil
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return !ProcessAlive(pid)
}

// StatusSnapshot is the daemon state as seen from the CLI.
type StatusSnapshot struct {
	// Running is true when the daemon process is alive.
	Running bool
	// APIReachable is true when Status came from the daemon API.
	APIReachable bool
	PID          int
	Status       api.DaemonStatus
}

// BuildStatusSnapshot queries the daemon API and falls back to the pid file
// plus an offline read of the queue when the API is unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, errors.New("configuration not available")
	}
	client := NewClient(cfg)
	if status, err := client.Status(ctx); err == nil {
		return StatusSnapshot{Running: true, APIReachable: true, PID: status.PID, Status: *status}, nil
	}

	snapshot := StatusSnapshot{}
	if pid, err := ReadPID(PIDPath(cfg)); err == nil && ProcessAlive(pid) {
		snapshot.Running = true
		snapshot.PID = pid
	}
	snapshot.Status = api.DaemonStatus{
		Running:      snapshot.Running,
		PID:          snapshot.PID,
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: LockPath(cfg),
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stats, err := offlineStats(queryCtx, cfg)
	if err != nil {
		return snapshot, err
	}
	snapshot.Status.Workflow.QueueStats = api.MergeQueueStats(stats)
	return snapshot, nil
}

func offlineStats(ctx context.Context, cfg *config.Config) (map[queue.Status]int, error) {
	if _, err := os.Stat(cfg.DatabasePath()); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer stores.Close()
	return stores.Queue.Stats(ctx)
}

// Stores bundles direct database access for commands that work without the
// daemon.
type Stores struct {
	DB      *database.DB
	Queue   *queue.Store
	Content *content.Store
}

// OpenStores opens the shared database and prepares both stores.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	queueStore, err := queue.NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	contentStore, err := content.NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{DB: db, Queue: queueStore, Content: contentStore}, nil
}

// Close releases the database handle.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
