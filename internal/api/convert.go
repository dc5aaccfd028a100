package api

import (
	"time"

	"clipguard/internal/content"
	"clipguard/internal/queue"
	"clipguard/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	return JobView{
		ID:            job.ID,
		VideoID:       job.VideoID,
		AssetID:       job.AssetID,
		Status:        string(job.Status),
		Stage:         string(job.Stage),
		Attempts:      job.Attempts,
		MaxAttempts:   job.MaxAttempts,
		ErrorMessage:  job.ErrorMessage,
		ErrorKind:     job.ErrorKind,
		RenditionURL:  job.RenditionURL,
		Verdict:       job.Verdict,
		NextAttemptAt: formatTimePtr(job.NextAttemptAt),
		LastHeartbeat: formatTimePtr(job.LastHeartbeat),
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
		StartedAt:     formatTimePtr(job.StartedAt),
		FinishedAt:    formatTimePtr(job.FinishedAt),
	}
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromVideo converts a video and its optional post to the API representation.
func FromVideo(video *content.Video, post *content.Post) VideoView {
	if video == nil {
		return VideoView{}
	}
	view := VideoView{
		ID:          video.ID,
		AssetID:     video.AssetID,
		URL:         video.URL,
		Flagged:     video.Flagged,
		PostID:      video.PostID,
		ModeratedAt: formatTimePtr(video.ModeratedAt),
		CreatedAt:   formatTime(video.CreatedAt),
		UpdatedAt:   formatTime(video.UpdatedAt),
	}
	if post != nil {
		view.PostFlagged = post.Flagged
	}
	return view
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: MergeQueueStats(summary.QueueStats),
		Retrying:   summary.Health.Retrying,
		LastError:  summary.LastError,
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats returns counts for every status, filling missing ones with zero.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
