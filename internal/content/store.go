package content

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipguard/internal/database"
)

//go:embed schema.sql
var schemaSQL string

const (
	schemaComponent = "content"
	schemaVersion   = 1
)

const (
	postColumns  = "id, caption, flagged, created_at, updated_at"
	videoColumns = "id, asset_id, url, flagged, post_id, moderated_at, created_at, updated_at"
)

// ErrInvalidVideo reports a video record missing its asset id or URL.
var ErrInvalidVideo = errors.New("invalid video")

// ErrPostNotFound is returned when a video references a missing post.
var ErrPostNotFound = errors.New("post not found")

// Store reads and writes posts and videos.
type Store struct {
	db *database.DB
}

// NewStore prepares the content tables on db. The caller owns db and closes it.
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("content store: database is nil")
	}
	if err := db.EnsureSchema(ctx, schemaComponent, schemaVersion, schemaSQL); err != nil {
		return nil, fmt.Errorf("content store: %w", err)
	}
	return &Store{db: db}, nil
}

// CreatePost inserts a new unflagged post.
func (s *Store) CreatePost(ctx context.Context, caption string) (*Post, error) {
	now := database.FormatTime(time.Now())
	var post *Post
	err := database.RetryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO posts (caption, flagged, created_at, updated_at) VALUES (?, 0, ?, ?) RETURNING `+postColumns,
			database.NullableString(strings.TrimSpace(caption)), now, now,
		)
		var scanErr error
		post, scanErr = scanPost(row)
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// CreateVideo inserts a new unflagged video, optionally linked to a post.
func (s *Store) CreateVideo(ctx context.Context, input NewVideo) (*Video, error) {
	assetID := strings.TrimSpace(input.AssetID)
	url := strings.TrimSpace(input.URL)
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset id required", ErrInvalidVideo)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: url required", ErrInvalidVideo)
	}

	var postID any
	if input.PostID != nil {
		post, err := s.GetPost(ctx, *input.PostID)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, fmt.Errorf("create video: %w: %d", ErrPostNotFound, *input.PostID)
		}
		postID = *input.PostID
	}

	now := database.FormatTime(time.Now())
	var video *Video
	err := database.RetryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO videos (asset_id, url, flagged, post_id, created_at, updated_at)
             VALUES (?, ?, 0, ?, ?, ?) RETURNING `+videoColumns,
			assetID, url, postID, now, now,
		)
		var scanErr error
		video, scanErr = scanVideo(row)
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return video, nil
}

// GetPost returns the post with id, or nil when it does not exist.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// GetVideo returns the video with id, or nil when it does not exist.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns every video, oldest first. With flaggedOnly set only
// flagged videos are returned.
func (s *Store) ListVideos(ctx context.Context, flaggedOnly bool) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	if flaggedOnly {
		query += ` WHERE flagged = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// ApplyVerdict stores the moderated URL and flag on a video and cascades a
// positive flag to its post, all in one transaction. A flag already set is
// never cleared. A missing video is not an error: the result reports
// Applied=false and nothing is written.
func (s *Store) ApplyVerdict(ctx context.Context, videoID int64, url string, flagged bool) (VerdictResult, error) {
	var result VerdictResult
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		result = VerdictResult{}
		var postID sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM videos WHERE id = ?`, videoID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		now := database.FormatTime(time.Now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE videos SET url = ?, flagged = MAX(flagged, ?), moderated_at = ?, updated_at = ? WHERE id = ?`,
			url, boolToInt(flagged), now, now, videoID,
		); err != nil {
			return err
		}
		result.Applied = true

		if !postID.Valid {
			return nil
		}
		id := postID.Int64
		result.PostID = &id
		if !flagged {
			return nil
		}
		res, err := tx.ExecContext(ctx, `UPDATE posts SET flagged = 1, updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.PostFlagged = affected > 0
		return nil
	})
	if err != nil {
		return VerdictResult{}, fmt.Errorf("apply verdict: %w", err)
	}
	return result, nil
}

// ClearVideoFlag is the moderation override: it clears the flag on a video
// and on its post. It reports false when the video does not exist.
func (s *Store) ClearVideoFlag(ctx context.Context, videoID int64) (bool, error) {
	var found bool
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		found = false
		var postID sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM videos WHERE id = ?`, videoID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		now := database.FormatTime(time.Now())
		if _, err := tx.ExecContext(ctx, `UPDATE videos SET flagged = 0, updated_at = ? WHERE id = ?`, now, videoID); err != nil {
			return err
		}
		if postID.Valid {
			if _, err := tx.ExecContext(ctx, `UPDATE posts SET flagged = 0, updated_at = ? WHERE id = ?`, now, postID.Int64); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clear video flag: %w", err)
	}
	return found, nil
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (*Post, error) {
	var (
		post       Post
		caption    sql.NullString
		flagged    int
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&post.ID, &caption, &flagged, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	post.Caption = caption.String
	post.Flagged = flagged != 0
	post.CreatedAt, _ = database.ParseTime(createdRaw)
	post.UpdatedAt, _ = database.ParseTime(updatedRaw)
	return &post, nil
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		video       Video
		flagged     int
		postID      sql.NullInt64
		moderatedAt sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&video.ID, &video.AssetID, &video.URL, &flagged, &postID, &moderatedAt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	video.Flagged = flagged != 0
	if postID.Valid {
		id := postID.Int64
		video.PostID = &id
	}
	video.ModeratedAt = database.TimePtr(moderatedAt)
	video.CreatedAt, _ = database.ParseTime(createdRaw)
	video.UpdatedAt, _ = database.ParseTime(updatedRaw)
	return &video, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
