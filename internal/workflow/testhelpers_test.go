package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clipguard/internal/config"
	"clipguard/internal/moderation"
	"clipguard/internal/notifications"
	"clipguard/internal/provider"
	"clipguard/internal/queue"
	"clipguard/internal/testsupport"
	"clipguard/internal/verdict"
	"clipguard/internal/workflow"
)

// recorder collects an ordered trace of pipeline events across goroutines.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type stubReadiness struct {
	wait func(ctx context.Context, assetID string) (provider.Asset, error)
}

func (s stubReadiness) Wait(ctx context.Context, assetID string) (provider.Asset, error) {
	if s.wait != nil {
		return s.wait(ctx, assetID)
	}
	return provider.Asset{ID: assetID, Ready: true, PlaybackID: "pb-" + assetID}, nil
}

type stubRendition struct {
	wait func(ctx context.Context, asset provider.Asset) (string, error)
}

func (s stubRendition) Wait(ctx context.Context, asset provider.Asset) (string, error) {
	if s.wait != nil {
		return s.wait(ctx, asset)
	}
	return "https://cdn.example/" + asset.PlaybackID + "/high.mp4", nil
}

type stubModerator struct {
	check func(ctx context.Context, url string) (moderation.Verdict, error)
}

func (s stubModerator) Check(ctx context.Context, url string) (moderation.Verdict, error) {
	if s.check != nil {
		return s.check(ctx, url)
	}
	return moderation.Verdict{}, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	aborted []notifications.Aborted
}

func (s *stubNotifier) NotifyVideoFlagged(context.Context, notifications.Flagged) error { return nil }

func (s *stubNotifier) NotifyJobAborted(_ context.Context, event notifications.Aborted) error {
	s.mu.Lock()
	s.aborted = append(s.aborted, event)
	s.mu.Unlock()
	return nil
}

func (s *stubNotifier) TestNotification(context.Context) error { return nil }

func (s *stubNotifier) abortedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.aborted)
}

type harness struct {
	cfg      *config.Config
	stores   testsupport.Stores
	notifier *stubNotifier
	manager  *workflow.Manager
}

func newHarness(t *testing.T, pipeline workflow.Pipeline, cfgOpts []testsupport.ConfigOption, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	stores := testsupport.MustOpenStores(t, cfg)
	if pipeline.Readiness == nil {
		pipeline.Readiness = stubReadiness{}
	}
	if pipeline.Rendition == nil {
		pipeline.Rendition = stubRendition{}
	}
	if pipeline.Moderation == nil {
		pipeline.Moderation = stubModerator{}
	}
	if pipeline.Propagator == nil {
		pipeline.Propagator = verdict.NewPropagator(stores.Content, nil, nil, nil)
	}
	notifier := &stubNotifier{}
	opts = append([]workflow.ManagerOption{workflow.WithPollInterval(20 * time.Millisecond)}, opts...)
	manager := workflow.NewManager(cfg, stores.Queue, pipeline, notifier, nil, opts...)
	return &harness{cfg: cfg, stores: stores, notifier: notifier, manager: manager}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

func (h *harness) enqueue(t *testing.T, videoID int64, assetID string) *queue.Job {
	t.Helper()
	job, _, err := h.manager.Enqueue(context.Background(), videoID, assetID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return job
}

// waitForStatus polls the store until the job reaches status.
func (h *harness) waitForStatus(t *testing.T, jobID int64, status queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.stores.Queue.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := h.stores.Queue.GetByID(context.Background(), jobID)
	t.Fatalf("job %d did not reach %s; last state %#v", jobID, status, job)
	return nil
}

// sleepRecorder is a waiter sleeper that returns immediately and keeps the
// requested durations.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return nil
}

func (s *sleepRecorder) total() (time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.sleeps {
		sum += d
	}
	return sum, len(s.sleeps)
}
