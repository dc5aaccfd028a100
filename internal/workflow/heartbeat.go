package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipguard/internal/logging"
	"clipguard/internal/queue"
)

// heartbeats keeps RUNNING rows fresh and hands stale ones back to the queue.
type heartbeats struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// Keep touches the job's heartbeat every interval until the returned func is
// called. The func blocks until the ticker goroutine has exited.
func (h heartbeats) Keep(ctx context.Context, jobID int64) func() {
	if h.interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger := logging.WithContext(ctx, h.logger).With(logging.String(logging.FieldComponent, "heartbeat"))

	go func() {
		defer close(done)
		tick := time.NewTicker(h.interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			err := h.store.UpdateHeartbeat(ctx, jobID)
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Warn("heartbeat update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_failed"),
			)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Reclaim requeues RUNNING jobs silent for longer than the timeout. Jobs out
// of attempts are aborted by the store instead.
func (h heartbeats) Reclaim(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	n, err := h.store.ReclaimStale(ctx, h.now().Add(-h.timeout))
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("reclaimed stale jobs",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "jobs_reclaimed"),
		)
	}
	return nil
}
