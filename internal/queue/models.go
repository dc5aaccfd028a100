package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a moderation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Stage names the step a running job is in.
type Stage string

const (
	StageReadiness  Stage = "readiness"
	StageRendition  Stage = "rendition"
	StageModeration Stage = "moderation"
	StagePropagate  Stage = "propagate"
)

// Verdict outcomes recorded on completed jobs.
const (
	VerdictFlagged = "flagged"
	VerdictClean   = "clean"
)

// DaemonStopReason is recorded when a running job is interrupted by shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusAborted,
}

// AllStatuses returns every job status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Job represents a moderation job persisted in SQLite.
type Job struct {
	ID            int64
	VideoID       int64
	AssetID       string
	Status        Status
	Stage         Stage
	Attempts      int
	MaxAttempts   int
	ErrorMessage  string
	ErrorKind     string
	RenditionURL  string
	Verdict       string
	NextAttemptAt *time.Time
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// AttemptsRemaining reports whether another attempt may follow a failure of
// the current one.
func (j *Job) AttemptsRemaining() bool {
	return j.Attempts < j.MaxAttempts
}

// Failure describes why a job attempt failed.
type Failure struct {
	Kind    string
	Stage   Stage
	Message string
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Running   int
	Completed int
	Aborted   int
	// Retrying counts queued jobs that already failed at least once.
	Retrying int
}
