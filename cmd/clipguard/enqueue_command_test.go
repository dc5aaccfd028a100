package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"clipguard/internal/api"
	"clipguard/internal/queue"
	"clipguard/internal/testsupport"
)

func TestEnqueueFallsBackToQueueDatabase(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"enqueue", "7", "asset-7"}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Enqueued job 1 for video 7 via queue database")

	out, _, err = runCLI(t, []string{"enqueue", "7", "asset-7"}, env.configPath)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	requireContains(t, out, "Video 7 already has active job 1 (queued)")

	jobs, err := env.stores.Queue.ListByVideo(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByVideo: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != queue.StatusQueued {
		t.Fatalf("expected one queued job, got %+v", jobs)
	}
	if jobs[0].MaxAttempts != env.cfg.Workflow.MaxAttempts {
		t.Fatalf("max attempts = %d, want %d", jobs[0].MaxAttempts, env.cfg.Workflow.MaxAttempts)
	}
}

func TestEnqueueUsesDaemonWhenReachable(t *testing.T) {
	var got api.EnqueueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.EnqueueResponse{
			Job:     api.JobView{ID: 42, VideoID: got.VideoID, AssetID: got.AssetID, Status: "queued"},
			Created: true,
		})
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = strings.TrimPrefix(srv.URL, "http://")
	configPath := filepath.Join(testsupport.BaseDir(cfg), "clipguard.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"enqueue", "3", " asset-3 "}, configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Enqueued job 42 for video 3 via daemon")
	if got.VideoID != 3 || got.AssetID != "asset-3" {
		t.Fatalf("daemon received %+v", got)
	}
}

func TestEnqueueRejectsInvalidArguments(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"enqueue", "abc", "asset"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric video id")
	}
	if _, _, err := runCLI(t, []string{"enqueue", "0", "asset"}, env.configPath); err == nil {
		t.Fatal("expected validation error for zero video id")
	}
	if _, _, err := runCLI(t, []string{"enqueue", "1"}, env.configPath); err == nil {
		t.Fatal("expected usage error for missing asset id")
	}
}
