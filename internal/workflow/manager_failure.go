package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipguard/internal/logging"
	"clipguard/internal/metrics"
	"clipguard/internal/notifications"
	"clipguard/internal/queue"
	"clipguard/internal/services"
)

const persistTimeout = 5 * time.Second

// handleJobFailure records a failed attempt. Shutdown returns the job to the
// queue without charging the attempt; other failures reschedule while
// attempts remain and abort otherwise.
func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, stage queue.Stage, stageErr error) {
	// The run context may already be canceled; the bookkeeping must still land.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if ctx.Err() != nil {
		if err := m.store.Requeue(persistCtx, job.ID, queue.DaemonStopReason); err != nil {
			logger.Warn("failed to requeue interrupted job", logging.Error(err))
		}
		metrics.JobFinished(metrics.OutcomeInterrupted, "canceled")
		logger.Info("job interrupted by shutdown; requeued",
			logging.String(logging.FieldStage, string(stage)),
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
		return
	}

	m.setLastError(stageErr)
	details := services.Details(stageErr)
	failure := queue.Failure{
		Kind:    details.Kind,
		Stage:   stage,
		Message: failureMessage(stage, details, stageErr),
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldStage, string(stage)),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("error_operation", details.Operation),
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
		logging.Error(stageErr),
	}

	if services.Retryable(stageErr) && job.AttemptsRemaining() {
		backoff := m.cfg.RetryBackoff(job.Attempts)
		retryAt := m.now().Add(backoff)
		if err := m.store.Reschedule(persistCtx, job.ID, failure, retryAt); err != nil {
			logger.Error("failed to reschedule job", logging.Error(err))
			return
		}
		metrics.JobFinished(metrics.OutcomeRescheduled, details.Kind)
		attrs = append(attrs, logging.Duration("retry_in", backoff))
		logging.WarnWithContext(logger, "job attempt failed; rescheduled", "job_rescheduled", attrs...)
		m.recordFailure(job, queue.StatusQueued, failure)
		return
	}

	if err := m.store.Abort(persistCtx, job.ID, failure); err != nil {
		logger.Error("failed to abort job", logging.Error(err))
		return
	}
	metrics.JobFinished(metrics.OutcomeAborted, details.Kind)
	attrs = append(attrs, logging.String(logging.FieldErrorHint, abortHint(stageErr)))
	logging.ErrorWithContext(logger, "job aborted; video left unmoderated", "job_aborted", attrs...)
	m.recordFailure(job, queue.StatusAborted, failure)

	if err := m.notifier.NotifyJobAborted(persistCtx, notifications.Aborted{
		JobID:    job.ID,
		VideoID:  job.VideoID,
		AssetID:  job.AssetID,
		Stage:    StageLabel(stage),
		Attempts: job.Attempts,
		Reason:   failure.Message,
	}); err != nil {
		metrics.SideEffectFailed("notifications")
		logger.Warn("abort notification failed", logging.Error(err))
	}
}

func (m *Manager) recordFailure(job *queue.Job, status queue.Status, failure queue.Failure) {
	job.Status = status
	job.Stage = failure.Stage
	job.ErrorKind = failure.Kind
	job.ErrorMessage = failure.Message
	m.setLastJob(job)
}

func failureMessage(stage queue.Stage, details services.ErrorDetails, err error) string {
	message := strings.TrimSpace(details.Message)
	if message == "" && err != nil {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = "failed without error detail"
	}
	return fmt.Sprintf("%s: %s", StageLabel(stage), message)
}

func abortHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "fix the configuration and run 'clipguard queue retry'"
	case errors.Is(err, services.ErrValidation):
		return "inspect the asset with the provider before retrying"
	case errors.Is(err, services.ErrModeration):
		return "check the moderation service, then run 'clipguard queue retry'"
	default:
		return "run 'clipguard queue retry' once the upstream recovers"
	}
}
