package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"clipguard/internal/api"
	"clipguard/internal/config"
	"clipguard/internal/daemon"
	"clipguard/internal/testsupport"
	"clipguard/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, testsupport.Stores) {
	t.Helper()
	stores := testsupport.MustOpenStores(t, cfg)
	pipeline := workflow.NewPipeline(cfg, stores.Content, nil, nil)
	mgr := workflow.NewManager(cfg, stores.Queue, pipeline, nil, nil)
	d, err := daemon.New(cfg, stores.Queue, stores.Content, mgr, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, stores
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := os.Stat(cfg.Paths.LogDir); !os.IsNotExist(err) {
		t.Fatalf("expected log dir to be absent before start, got %v", err)
	}
	d, _ := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.PID == 0 {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if status.EventsActive {
		t.Fatal("events should be inactive without a publisher")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, daemon.LockFileName)); err != nil {
		t.Fatalf("expected lock file in log dir: %v", err)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	resp, err := http.Get("http://" + d.APIAddress() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	var payload api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running || !payload.Workflow.Running || payload.Workflow.Workers != 1 {
		t.Fatalf("unexpected status payload: %+v", payload)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	// The second instance shares the log dir and therefore the lock file.
	second, _ := newDaemon(t, cfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, stores := newDaemon(t, cfg)
	video := testsupport.NewVideo(t, stores.Content, "asset-v")

	got, post, err := d.Video(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if got == nil || post == nil || post.ID != *video.PostID {
		t.Fatalf("unexpected video/post: %+v %+v", got, post)
	}

	missing, _, err := d.Video(context.Background(), video.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected missing video, got %+v (err %v)", missing, err)
	}
}
