package queue

import (
	"database/sql"

	"clipguard/internal/database"
)

const jobColumns = "id, video_id, asset_id, status, stage, attempts, max_attempts, error_message, error_kind, rendition_url, verdict, next_attempt_at, last_heartbeat, created_at, updated_at, started_at, finished_at"

var expectedColumns = []string{
	"id",
	"video_id",
	"asset_id",
	"status",
	"stage",
	"attempts",
	"max_attempts",
	"error_message",
	"error_kind",
	"rendition_url",
	"verdict",
	"next_attempt_at",
	"last_heartbeat",
	"created_at",
	"updated_at",
	"started_at",
	"finished_at",
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job           Job
		statusStr     string
		stage         sql.NullString
		errorMessage  sql.NullString
		errorKind     sql.NullString
		renditionURL  sql.NullString
		verdict       sql.NullString
		nextAttempt   sql.NullString
		lastHeartbeat sql.NullString
		createdRaw    string
		updatedRaw    string
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.VideoID,
		&job.AssetID,
		&statusStr,
		&stage,
		&job.Attempts,
		&job.MaxAttempts,
		&errorMessage,
		&errorKind,
		&renditionURL,
		&verdict,
		&nextAttempt,
		&lastHeartbeat,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.Status = Status(statusStr)
	job.Stage = Stage(stage.String)
	job.ErrorMessage = errorMessage.String
	job.ErrorKind = errorKind.String
	job.RenditionURL = renditionURL.String
	job.Verdict = verdict.String
	job.NextAttemptAt = database.TimePtr(nextAttempt)
	job.LastHeartbeat = database.TimePtr(lastHeartbeat)
	job.StartedAt = database.TimePtr(startedRaw)
	job.FinishedAt = database.TimePtr(finishedRaw)
	if created, err := database.ParseTime(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
