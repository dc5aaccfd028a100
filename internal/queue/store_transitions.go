package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clipguard/internal/database"
)

// ErrJobNotRunning is returned when a transition targets a job that is no
// longer RUNNING, typically because it was reclaimed or removed.
var ErrJobNotRunning = errors.New("job is not running")

// ClaimNext atomically moves the oldest eligible QUEUED job to RUNNING and
// returns it. It returns nil when nothing is due.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (*Job, error) {
	timestamp := database.FormatTime(now)
	var job *Job
	err := database.RetryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE moderation_jobs
             SET status = ?, stage = ?, attempts = attempts + 1, started_at = ?,
                 last_heartbeat = ?, updated_at = ?, next_attempt_at = NULL, finished_at = NULL
             WHERE id = (
                 SELECT id FROM moderation_jobs
                 WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
                 ORDER BY id LIMIT 1
             )
             RETURNING `+jobColumns,
			StatusRunning,
			StageReadiness,
			timestamp,
			timestamp,
			timestamp,
			StatusQueued,
			timestamp,
		)
		var scanErr error
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// UpdateStage records the stage a running job has entered.
func (s *Store) UpdateStage(ctx context.Context, id int64, stage Stage) error {
	now := database.FormatTime(time.Now())
	return s.transition(ctx, "update stage",
		`UPDATE moderation_jobs SET stage = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stage, now, now, id, StatusRunning,
	)
}

// UpdateRenditionURL records the confirmed download URL on a running job.
func (s *Store) UpdateRenditionURL(ctx context.Context, id int64, url string) error {
	return s.transition(ctx, "update rendition url",
		`UPDATE moderation_jobs SET rendition_url = ?, updated_at = ? WHERE id = ? AND status = ?`,
		database.NullableString(url), database.FormatTime(time.Now()), id, StatusRunning,
	)
}

// Complete marks a running job COMPLETED with its verdict.
func (s *Store) Complete(ctx context.Context, id int64, renditionURL, verdict string) error {
	now := database.FormatTime(time.Now())
	return s.transition(ctx, "complete job",
		`UPDATE moderation_jobs
         SET status = ?, rendition_url = ?, verdict = ?, error_message = NULL, error_kind = NULL,
             last_heartbeat = NULL, updated_at = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, database.NullableString(renditionURL), database.NullableString(verdict),
		now, now, id, StatusRunning,
	)
}

// Reschedule returns a failed running job to QUEUED, eligible again at retryAt.
func (s *Store) Reschedule(ctx context.Context, id int64, failure Failure, retryAt time.Time) error {
	return s.transition(ctx, "reschedule job",
		`UPDATE moderation_jobs
         SET status = ?, stage = ?, error_message = ?, error_kind = ?, next_attempt_at = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued, database.NullableString(string(failure.Stage)),
		database.NullableString(failure.Message), database.NullableString(failure.Kind),
		database.FormatTime(retryAt), database.FormatTime(time.Now()), id, StatusRunning,
	)
}

// Abort marks a running job ABORTED. The record stays as the durable trace of
// a video that was never moderated.
func (s *Store) Abort(ctx context.Context, id int64, failure Failure) error {
	now := database.FormatTime(time.Now())
	return s.transition(ctx, "abort job",
		`UPDATE moderation_jobs
         SET status = ?, stage = ?, error_message = ?, error_kind = ?, next_attempt_at = NULL,
             last_heartbeat = NULL, updated_at = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusAborted, database.NullableString(string(failure.Stage)),
		database.NullableString(failure.Message), database.NullableString(failure.Kind),
		now, now, id, StatusRunning,
	)
}

// Requeue returns an interrupted running job to QUEUED without charging the attempt.
func (s *Store) Requeue(ctx context.Context, id int64, reason string) error {
	return s.transition(ctx, "requeue job",
		`UPDATE moderation_jobs
         SET status = ?, attempts = MAX(attempts - 1, 0), error_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued, database.NullableString(reason), database.FormatTime(time.Now()), id, StatusRunning,
	)
}

func (s *Store) transition(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrJobNotRunning)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := database.FormatTime(time.Now())
	return s.transition(ctx, "update heartbeat",
		`UPDATE moderation_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	)
}

// ResetRunning returns every RUNNING job to QUEUED. It runs at daemon start,
// when any RUNNING row was interrupted by the previous process, so the
// interrupted attempt is not charged.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecRetry(
		ctx,
		`UPDATE moderation_jobs
         SET status = ?, attempts = MAX(attempts - 1, 0), error_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		DaemonStopReason,
		database.FormatTime(time.Now()),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale returns running jobs whose heartbeat is older than cutoff to
// QUEUED, or ABORTED when they have no attempts left.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := database.FormatTime(time.Now())
	res, err := s.db.ExecRetry(
		ctx,
		`UPDATE moderation_jobs
         SET status = CASE WHEN attempts < max_attempts THEN ? ELSE ? END,
             finished_at = CASE WHEN attempts < max_attempts THEN NULL ELSE ? END,
             error_message = 'Reclaimed after heartbeat timeout', error_kind = 'stale',
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued,
		StatusAborted,
		now,
		now,
		StatusRunning,
		database.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryAborted moves aborted jobs back to QUEUED with a fresh attempt budget.
// With no ids every aborted job is considered. A job is skipped when its
// video already has an active job, and only the newest aborted job per video
// is revived.
func (s *Store) RetryAborted(ctx context.Context, ids ...int64) (int64, error) {
	query := `SELECT id FROM moderation_jobs WHERE status = ?`
	args := []any{StatusAborted}
	if len(ids) > 0 {
		query += ` AND id IN (` + database.Placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id DESC`

	var retried int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		retried = 0
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		var candidates []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		now := database.FormatTime(time.Now())
		for _, id := range candidates {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE moderation_jobs
                 SET status = ?, stage = NULL, attempts = 0, error_message = NULL, error_kind = NULL,
                     next_attempt_at = NULL, finished_at = NULL, updated_at = ?
                 WHERE id = ? AND status = ? AND NOT EXISTS (
                     SELECT 1 FROM moderation_jobs active
                     WHERE active.video_id = moderation_jobs.video_id AND active.status IN (?, ?)
                 )`,
				StatusQueued, now, id, StatusAborted, StatusQueued, StatusRunning,
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			retried += affected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("retry aborted jobs: %w", err)
	}
	return retried, nil
}
