package testsupport

import (
	"context"
	"testing"

	"clipguard/internal/config"
	"clipguard/internal/content"
	"clipguard/internal/database"
	"clipguard/internal/queue"
)

// Stores bundles the stores sharing one test database.
type Stores struct {
	DB      *database.DB
	Queue   *queue.Store
	Content *content.Store
}

// MustOpenDB opens the configured database and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenStores opens the queue and content stores on a fresh database.
func MustOpenStores(t testing.TB, cfg *config.Config) Stores {
	t.Helper()

	db := MustOpenDB(t, cfg)
	ctx := context.Background()
	queueStore, err := queue.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("queue.NewStore: %v", err)
	}
	contentStore, err := content.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("content.NewStore: %v", err)
	}
	return Stores{DB: db, Queue: queueStore, Content: contentStore}
}

// MustOpenStore opens only the queue store.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return MustOpenStores(t, cfg).Queue
}

// NewVideo creates a post and a linked video with a manifest URL.
func NewVideo(t testing.TB, store *content.Store, assetID string) *content.Video {
	t.Helper()

	ctx := context.Background()
	post, err := store.CreatePost(ctx, "post for "+assetID)
	if err != nil {
		t.Fatalf("store.CreatePost: %v", err)
	}
	video, err := store.CreateVideo(ctx, content.NewVideo{
		AssetID: assetID,
		URL:     "https://stream.example/" + assetID + ".m3u8",
		PostID:  &post.ID,
	})
	if err != nil {
		t.Fatalf("store.CreateVideo: %v", err)
	}
	return video
}
