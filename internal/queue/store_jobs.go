package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipguard/internal/database"
)

// ErrInvalidJob reports an enqueue request missing its video or asset id.
var ErrInvalidJob = errors.New("invalid job")

// Enqueue inserts a QUEUED job for the video unless one is already queued or
// running, in which case that job is returned and created is false.
func (s *Store) Enqueue(ctx context.Context, videoID int64, assetID string, maxAttempts int) (job *Job, created bool, err error) {
	assetID = strings.TrimSpace(assetID)
	if videoID <= 0 {
		return nil, false, fmt.Errorf("%w: video id must be positive", ErrInvalidJob)
	}
	if assetID == "" {
		return nil, false, fmt.Errorf("%w: asset id required", ErrInvalidJob)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	// The active job can finish between the skipped insert and the lookup;
	// a second pass then inserts normally.
	for range 3 {
		timestamp := database.FormatTime(time.Now())
		err = database.RetryOnBusy(ctx, func() error {
			row := s.db.QueryRowContext(
				ctx,
				`INSERT INTO moderation_jobs (
                    video_id, asset_id, status, attempts, max_attempts, created_at, updated_at
                ) VALUES (?, ?, ?, 0, ?, ?, ?)
                ON CONFLICT DO NOTHING
                RETURNING `+jobColumns,
				videoID,
				assetID,
				StatusQueued,
				maxAttempts,
				timestamp,
				timestamp,
			)
			var scanErr error
			job, scanErr = scanJob(row)
			return scanErr
		})
		if err == nil {
			return job, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("insert job: %w", err)
		}

		existing, err := s.ActiveForVideo(ctx, videoID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("insert job: active job for video %d kept changing", videoID)
}

// ActiveForVideo returns the queued or running job for a video, if any.
func (s *Store) ActiveForVideo(ctx context.Context, videoID int64) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM moderation_jobs
         WHERE video_id = ? AND status IN (?, ?) ORDER BY id LIMIT 1`,
		videoID,
		StatusQueued,
		StatusRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for video: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by identifier. It returns nil when the job does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM moderation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided) in FIFO order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + jobColumns + ` FROM moderation_jobs`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		query := baseQuery + ` WHERE status IN (` + database.Placeholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return scanJobs(rows)
}

// ListByVideo returns every job recorded for a video, oldest first.
func (s *Store) ListByVideo(ctx context.Context, videoID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM moderation_jobs WHERE video_id = ? ORDER BY id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for video: %w", err)
	}
	return scanJobs(rows)
}

// Remove deletes a job that is not currently running.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecRetry(ctx, `DELETE FROM moderation_jobs WHERE id = ? AND status != ?`, id, StatusRunning)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearStatus(ctx, StatusCompleted)
}

// ClearAborted removes only aborted jobs.
func (s *Store) ClearAborted(ctx context.Context) (int64, error) {
	return s.clearStatus(ctx, StatusAborted)
}

func (s *Store) clearStatus(ctx context.Context, status Status) (int64, error) {
	res, err := s.db.ExecRetry(ctx, `DELETE FROM moderation_jobs WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return res.RowsAffected()
}

// Clear removes every job that is not currently running.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecRetry(ctx, `DELETE FROM moderation_jobs WHERE status != ?`, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
