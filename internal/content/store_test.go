package content_test

import (
	"context"
	"errors"
	"testing"

	"clipguard/internal/content"
	"clipguard/internal/testsupport"
)

func TestCreateVideoLinksPost(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	video := testsupport.NewVideo(t, stores.Content, "asset-1")

	if video.ID == 0 || video.PostID == nil {
		t.Fatalf("expected video with post link, got %#v", video)
	}
	if video.Flagged || video.ModeratedAt != nil {
		t.Fatalf("new video must be unmoderated: %#v", video)
	}

	fetched, err := stores.Content.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if fetched == nil || fetched.URL != video.URL || *fetched.PostID != *video.PostID {
		t.Fatalf("unexpected fetched video: %#v", fetched)
	}
}

func TestCreateVideoValidation(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := stores.Content.CreateVideo(ctx, content.NewVideo{URL: "https://x"}); !errors.Is(err, content.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo, got %v", err)
	}
	missing := int64(99)
	if _, err := stores.Content.CreateVideo(ctx, content.NewVideo{AssetID: "a", URL: "https://x", PostID: &missing}); !errors.Is(err, content.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestApplyVerdictFlaggedCascadesToPost(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.NewVideo(t, stores.Content, "asset-1")

	result, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/asset-1/high.mp4", true)
	if err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}
	if !result.Applied || !result.PostFlagged {
		t.Fatalf("unexpected result: %#v", result)
	}

	updated, _ := stores.Content.GetVideo(ctx, video.ID)
	if !updated.Flagged || updated.URL != "https://cdn/asset-1/high.mp4" || updated.ModeratedAt == nil {
		t.Fatalf("unexpected video after verdict: %#v", updated)
	}
	post, _ := stores.Content.GetPost(ctx, *video.PostID)
	if !post.Flagged {
		t.Fatal("expected post to be flagged")
	}
}

func TestApplyVerdictCleanSwapsURLOnly(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.NewVideo(t, stores.Content, "asset-1")

	result, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/clean.mp4", false)
	if err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}
	if !result.Applied || result.PostFlagged {
		t.Fatalf("unexpected result: %#v", result)
	}
	updated, _ := stores.Content.GetVideo(ctx, video.ID)
	if updated.Flagged || updated.URL != "https://cdn/clean.mp4" {
		t.Fatalf("unexpected video after clean verdict: %#v", updated)
	}
	post, _ := stores.Content.GetPost(ctx, *video.PostID)
	if post.Flagged {
		t.Fatal("post must stay unflagged")
	}
}

func TestApplyVerdictNeverClearsFlag(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.NewVideo(t, stores.Content, "asset-1")

	if _, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/1.mp4", true); err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}
	if _, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/2.mp4", false); err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}
	updated, _ := stores.Content.GetVideo(ctx, video.ID)
	if !updated.Flagged {
		t.Fatal("flag must not be cleared by a later clean verdict")
	}
}

func TestApplyVerdictMissingVideoIsNoop(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.NewVideo(t, stores.Content, "asset-1")
	if _, err := stores.DB.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}

	result, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/1.mp4", true)
	if err != nil {
		t.Fatalf("expected missing video to be ignored, got %v", err)
	}
	if result.Applied {
		t.Fatalf("expected nothing applied, got %#v", result)
	}
	post, _ := stores.Content.GetPost(ctx, *video.PostID)
	if post.Flagged {
		t.Fatal("post of a deleted video must not be flagged")
	}
}

func TestApplyVerdictWithoutPost(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video, err := stores.Content.CreateVideo(ctx, content.NewVideo{AssetID: "orphan", URL: "https://stream/orphan.m3u8"})
	if err != nil {
		t.Fatalf("CreateVideo failed: %v", err)
	}

	result, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/orphan.mp4", true)
	if err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}
	if !result.Applied || result.PostID != nil || result.PostFlagged {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestClearVideoFlag(t *testing.T) {
	stores := testsupport.MustOpenStores(t, testsupport.NewConfig(t))
	ctx := context.Background()
	video := testsupport.NewVideo(t, stores.Content, "asset-1")
	if _, err := stores.Content.ApplyVerdict(ctx, video.ID, "https://cdn/1.mp4", true); err != nil {
		t.Fatalf("ApplyVerdict failed: %v", err)
	}

	found, err := stores.Content.ClearVideoFlag(ctx, video.ID)
	if err != nil || !found {
		t.Fatalf("ClearVideoFlag: found=%v err=%v", found, err)
	}
	updated, _ := stores.Content.GetVideo(ctx, video.ID)
	post, _ := stores.Content.GetPost(ctx, *video.PostID)
	if updated.Flagged || post.Flagged {
		t.Fatal("expected flags cleared by override")
	}

	flagged, err := stores.Content.ListVideos(ctx, true)
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(flagged) != 0 {
		t.Fatalf("expected no flagged videos, got %d", len(flagged))
	}

	found, err = stores.Content.ClearVideoFlag(ctx, 12345)
	if err != nil || found {
		t.Fatalf("expected missing video to report not found, got found=%v err=%v", found, err)
	}
}
