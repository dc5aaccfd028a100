package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM moderation_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusRunning:
			health.Running += count
		case StatusCompleted:
			health.Completed += count
		case StatusAborted:
			health.Aborted += count
		}
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM moderation_jobs WHERE status = ? AND attempts > 0`, StatusQueued)
	if err := row.Scan(&health.Retrying); err != nil {
		return HealthSummary{}, fmt.Errorf("count retrying jobs: %w", err)
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	path := s.Path()
	health := DatabaseHealth{DBPath: path}
	if path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	fail := func(err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, err
	}

	if err := s.db.PingContext(connCtx); err != nil {
		return fail(fmt.Errorf("ping queue database: %w", err))
	}
	health.DatabaseReadable = true

	version, err := s.db.SchemaVersion(connCtx, schemaComponent)
	if err != nil {
		return fail(fmt.Errorf("read schema version: %w", err))
	}
	health.SchemaVersion = version

	columns, err := s.db.Columns(connCtx, "moderation_jobs")
	if err != nil {
		return fail(err)
	}
	health.TableExists = len(columns) > 0
	if health.TableExists {
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)
		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col] = struct{}{}
		}
		for _, col := range expectedColumns {
			if _, ok := present[col]; !ok {
				health.MissingColumns = append(health.MissingColumns, col)
			}
		}

		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM moderation_jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			return fail(fmt.Errorf("count jobs: %w", err))
		}
	}

	ok, err := s.db.IntegrityCheck(connCtx)
	if err != nil {
		return fail(err)
	}
	health.IntegrityCheck = ok
	return health, nil
}
