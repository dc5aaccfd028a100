package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"clipguard/internal/logging"
)

// Start resets jobs left RUNNING by a previous process and launches the
// worker pool. It returns once the workers are running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.pipeline.Readiness == nil || m.pipeline.Rendition == nil || m.pipeline.Moderation == nil || m.pipeline.Propagator == nil {
		m.mu.Unlock()
		return errors.New("workflow pipeline not configured")
	}

	reset, err := m.store.ResetRunning(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if reset > 0 {
		m.logger.Info("requeued jobs interrupted by previous shutdown",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "jobs_reset"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running = true
	m.mu.Unlock()

	group, groupCtx := errgroup.WithContext(runCtx)
	for worker := range m.workers {
		group.Go(func() error {
			m.runWorker(groupCtx, worker)
			return nil
		})
	}
	go func() {
		_ = group.Wait()
		close(done)
	}()

	m.logger.Info("workflow started", logging.Int("workers", m.workers))
	return nil
}

// Stop cancels the workers and waits for them to return. A job interrupted
// mid-flight goes back to the queue without consuming an attempt.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("workflow stopped")
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}

		// One reclaimer is enough.
		if worker == 0 {
			if err := m.heartbeat.Reclaim(ctx, logger); err != nil && ctx.Err() == nil {
				logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}

		job, err := m.store.ClaimNext(ctx, m.now())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}
