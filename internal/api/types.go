package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a moderation job in a transport-friendly format.
type JobView struct {
	ID            int64  `json:"id"`
	VideoID       int64  `json:"videoId"`
	AssetID       string `json:"assetId"`
	Status        string `json:"status"`
	Stage         string `json:"stage,omitempty"`
	Attempts      int    `json:"attempts"`
	MaxAttempts   int    `json:"maxAttempts"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
	RenditionURL  string `json:"renditionUrl,omitempty"`
	Verdict       string `json:"verdict,omitempty"`
	NextAttemptAt string `json:"nextAttemptAt,omitempty"`
	LastHeartbeat string `json:"lastHeartbeat,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt,omitempty"`
}

// VideoView describes a video and the moderation state of its post.
type VideoView struct {
	ID          int64  `json:"id"`
	AssetID     string `json:"assetId"`
	URL         string `json:"url"`
	Flagged     bool   `json:"flagged"`
	PostID      *int64 `json:"postId,omitempty"`
	PostFlagged bool   `json:"postFlagged"`
	ModeratedAt string `json:"moderatedAt,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queueStats"`
	Retrying   int            `json:"retrying"`
	LastError  string         `json:"lastError,omitempty"`
	LastJob    *JobView       `json:"lastJob,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	EventsActive bool           `json:"eventsActive"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// VideoResponse wraps a single video together with its job history.
type VideoResponse struct {
	Video VideoView `json:"video"`
	Jobs  []JobView `json:"jobs"`
}

// EnqueueRequest is the body of POST /api/jobs.
type EnqueueRequest struct {
	VideoID int64  `json:"video_id" validate:"required,gt=0"`
	AssetID string `json:"asset_id" validate:"required,max=255"`
}

// EnqueueResponse reports the active job for the video. Created is false when
// an existing queued or running job was returned instead of a new one.
type EnqueueResponse struct {
	Job     JobView `json:"job"`
	Created bool    `json:"created"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}
