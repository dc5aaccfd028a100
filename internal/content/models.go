package content

import "time"

// Post is the owner of at most one video.
type Post struct {
	ID        int64
	Caption   string
	Flagged   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is an uploaded clip. URL starts as the streaming manifest and is
// replaced by the moderated download URL.
type Video struct {
	ID          int64
	AssetID     string
	URL         string
	Flagged     bool
	PostID      *int64
	ModeratedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewVideo describes a video record to create.
type NewVideo struct {
	AssetID string
	URL     string
	PostID  *int64
}

// VerdictResult reports what ApplyVerdict changed.
type VerdictResult struct {
	// Applied is false when the video no longer exists.
	Applied     bool
	PostID      *int64
	PostFlagged bool
}
