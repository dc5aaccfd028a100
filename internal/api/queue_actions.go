package api

import (
	"context"

	"clipguard/internal/queue"
)

// QueueActionService captures queue operations needed by per-job retry workflows.
type QueueActionService interface {
	Describe(ctx context.Context, id int64) (*JobView, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
}

type RetryJobOutcome string

const (
	RetryJobUpdated     RetryJobOutcome = "retried"
	RetryJobNotFound    RetryJobOutcome = "not_found"
	RetryJobNotAborted  RetryJobOutcome = "not_aborted"
	RetryJobVideoActive RetryJobOutcome = "video_active"
)

type RetryJobResult struct {
	ID      int64           `json:"id"`
	Outcome RetryJobOutcome `json:"outcome"`
}

type RetryJobsResult struct {
	UpdatedCount int64            `json:"updatedCount"`
	Jobs         []RetryJobResult `json:"jobs"`
}

// RetryAbortedJobsByID validates IDs and retries only aborted jobs. An aborted
// job whose video already has another active job is left alone.
func RetryAbortedJobsByID(ctx context.Context, service QueueActionService, ids []int64) (RetryJobsResult, error) {
	result := RetryJobsResult{Jobs: make([]RetryJobResult, 0, len(ids))}
	for _, id := range ids {
		job, err := service.Describe(ctx, id)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if job == nil {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFound})
			continue
		}
		if status, ok := queue.ParseStatus(job.Status); !ok || status != queue.StatusAborted {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotAborted})
			continue
		}
		updated, err := service.Retry(ctx, []int64{id})
		if err != nil {
			return RetryJobsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobUpdated})
			continue
		}
		result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobVideoActive})
	}
	return result, nil
}
