package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clipguard/internal/logging"
	"clipguard/internal/metrics"
	"clipguard/internal/queue"
	"clipguard/internal/services"
	"clipguard/internal/verdict"
)

// processJob runs one claimed job to completion, reschedule or abort.
func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithVideoID(jobCtx, job.VideoID)
	jobCtx = services.WithAssetID(jobCtx, job.AssetID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, workerLogger)

	m.setLastJob(job)
	logger.Info("job started",
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
		logging.String(logging.FieldEventType, "job_started"),
	)

	stopHeartbeat := m.heartbeat.Keep(jobCtx, job.ID)
	started := time.Now()
	renditionURL, flagged, stage, err := m.runStages(jobCtx, logger, job)
	stopHeartbeat()

	if err != nil {
		m.handleJobFailure(ctx, logger, job, stage, err)
		return
	}

	verdictLabel := queue.VerdictClean
	if flagged {
		verdictLabel = queue.VerdictFlagged
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.Complete(persistCtx, job.ID, renditionURL, verdictLabel); err != nil {
		m.setLastError(err)
		logger.Error("failed to mark job completed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
			logging.String(logging.FieldErrorHint, "the verdict was written; the job will be reclaimed"),
		)
		return
	}
	metrics.JobFinished(metrics.OutcomeCompleted, "")
	job.Status = queue.StatusCompleted
	job.RenditionURL = renditionURL
	job.Verdict = verdictLabel
	m.setLastJob(job)
	logger.Info("job completed",
		logging.String("verdict", verdictLabel),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
}

// runStages drives the job through each stage in order. It returns the stage
// that failed alongside the error.
func (m *Manager) runStages(ctx context.Context, logger *slog.Logger, job *queue.Job) (string, bool, queue.Stage, error) {
	stageCtx := m.enterStage(ctx, logger, job, queue.StageReadiness)
	begin := time.Now()
	asset, err := m.pipeline.Readiness.Wait(stageCtx, job.AssetID)
	m.leaveStage(logger, queue.StageReadiness, begin)
	if err != nil {
		return "", false, queue.StageReadiness, err
	}

	stageCtx = m.enterStage(ctx, logger, job, queue.StageRendition)
	begin = time.Now()
	url, err := m.pipeline.Rendition.Wait(stageCtx, asset)
	m.leaveStage(logger, queue.StageRendition, begin)
	if err != nil {
		return "", false, queue.StageRendition, err
	}
	if err := m.store.UpdateRenditionURL(ctx, job.ID, url); err != nil {
		return "", false, queue.StageRendition, services.Wrap(services.ErrTransient, string(queue.StageRendition), "record url", "", err)
	}

	stageCtx = m.enterStage(ctx, logger, job, queue.StageModeration)
	begin = time.Now()
	result, err := m.pipeline.Moderation.Check(stageCtx, url)
	m.leaveStage(logger, queue.StageModeration, begin)
	if err != nil {
		return "", false, queue.StageModeration, err
	}

	stageCtx = m.enterStage(ctx, logger, job, queue.StagePropagate)
	begin = time.Now()
	_, err = m.pipeline.Propagator.Apply(stageCtx, verdict.Input{
		JobID:   job.ID,
		VideoID: job.VideoID,
		AssetID: job.AssetID,
		URL:     url,
		Flagged: result.NudityDetected,
	})
	m.leaveStage(logger, queue.StagePropagate, begin)
	if err != nil {
		return "", false, queue.StagePropagate, err
	}
	return url, result.NudityDetected, queue.StagePropagate, nil
}

func (m *Manager) enterStage(ctx context.Context, logger *slog.Logger, job *queue.Job, stage queue.Stage) context.Context {
	job.Stage = stage
	if err := m.store.UpdateStage(ctx, job.ID, stage); err != nil && ctx.Err() == nil {
		logger.Warn("failed to record job stage",
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err),
		)
	}
	logger.Debug(StageLabel(stage)+" started", logging.String(logging.FieldStage, string(stage)))
	return services.WithStage(ctx, string(stage))
}

func (m *Manager) leaveStage(logger *slog.Logger, stage queue.Stage, begin time.Time) {
	elapsed := time.Since(begin)
	metrics.ObserveStage(string(stage), elapsed)
	logger.Debug(StageLabel(stage)+" finished",
		logging.String(logging.FieldStage, string(stage)),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
}
