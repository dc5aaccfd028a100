package workflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clipguard/internal/queue"
	"clipguard/internal/testsupport"
	"clipguard/internal/workflow"
)

// fakeUpstreams serves the provider API, the CDN and the moderation service.
type fakeUpstreams struct {
	provider   *httptest.Server
	cdn        *httptest.Server
	moderation *httptest.Server

	assetReady     atomic.Bool
	cdnLive        atomic.Bool
	nudity         atomic.Bool
	statusCalls    atomic.Int32
	headCalls      atomic.Int32
	moderationURLs chan string
}

func newFakeUpstreams(t *testing.T) *fakeUpstreams {
	t.Helper()
	f := &fakeUpstreams{moderationURLs: make(chan string, 8)}
	f.assetReady.Store(true)
	f.cdnLive.Store(true)

	f.cdn = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.headCalls.Add(1)
		if !f.cdnLive.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.cdn.Close)

	f.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "test-id" || pass != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/renditions"):
			_, _ = w.Write([]byte(`{"data":{"status":"preparing","percentComplete":"40"}}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/renditions"):
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/assets/"):
			f.statusCalls.Add(1)
			if !f.assetReady.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"id":"asset-1","status":"ready","playback_ids":[{"id":"pb1"}],"duration":12.5}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.provider.Close)

	f.moderation = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VideoURL string `json:"video_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.moderationURLs <- body.VideoURL
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"nudity_detected": f.nudity.Load()})
	}))
	t.Cleanup(f.moderation.Close)
	return f
}

func (f *fakeUpstreams) harness(t *testing.T, sleeps *sleepRecorder) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithProvider(f.provider.URL, f.cdn.URL),
		testsupport.WithModeration(f.moderation.URL),
		testsupport.WithMaxAttempts(1),
	)
	stores := testsupport.MustOpenStores(t, cfg)
	notifier := &stubNotifier{}
	pipeline := workflow.NewPipeline(cfg, stores.Content, notifier, nil, workflow.WithSleeper(sleeps.sleep))
	manager := workflow.NewManager(cfg, stores.Queue, pipeline, notifier, nil, workflow.WithPollInterval(20*time.Millisecond))
	return &harness{cfg: cfg, stores: stores, notifier: notifier, manager: manager}
}

func TestPipelineHappyPathAgainstFakeUpstreams(t *testing.T) {
	upstreams := newFakeUpstreams(t)
	upstreams.nudity.Store(true)
	sleeps := &sleepRecorder{}
	h := upstreams.harness(t, sleeps)
	video := testsupport.NewVideo(t, h.stores.Content, "asset-1")
	h.start(t)

	job := h.enqueue(t, video.ID, "asset-1")
	done := h.waitForStatus(t, job.ID, queue.StatusCompleted)

	wantURL := upstreams.cdn.URL + "/pb1/high.mp4"
	if done.RenditionURL != wantURL {
		t.Fatalf("expected rendition %q, got %q", wantURL, done.RenditionURL)
	}
	select {
	case got := <-upstreams.moderationURLs:
		if got != wantURL {
			t.Fatalf("moderation received %q, want %q", got, wantURL)
		}
	default:
		t.Fatal("moderation service was not called")
	}
	if calls := upstreams.statusCalls.Load(); calls != 1 {
		t.Fatalf("expected one status round trip, got %d", calls)
	}
	if total, count := sleeps.total(); total != time.Second || count != 1 {
		t.Fatalf("expected only the initial 1s readiness delay, got %v over %d sleeps", total, count)
	}

	updated, _ := h.stores.Content.GetVideo(context.Background(), video.ID)
	if !updated.Flagged || updated.URL != wantURL {
		t.Fatalf("unexpected video: %#v", updated)
	}
}

func TestPipelineReadinessNeverReadyAborts(t *testing.T) {
	upstreams := newFakeUpstreams(t)
	upstreams.assetReady.Store(false)
	sleeps := &sleepRecorder{}
	h := upstreams.harness(t, sleeps)
	video := testsupport.NewVideo(t, h.stores.Content, "asset-1")
	h.start(t)

	job := h.enqueue(t, video.ID, "asset-1")
	aborted := h.waitForStatus(t, job.ID, queue.StatusAborted)
	if aborted.ErrorKind != "upstream_timeout" || aborted.Stage != queue.StageReadiness {
		t.Fatalf("unexpected aborted job: %#v", aborted)
	}
	if calls := upstreams.statusCalls.Load(); calls != 9 {
		t.Fatalf("expected 9 status checks, got %d", calls)
	}
	if total, count := sleeps.total(); total != 37*time.Second || count != 9 {
		t.Fatalf("expected 37s over 9 sleeps, got %v over %d", total, count)
	}
}

func TestPipelineHeadNeverSucceedsLeavesVideoUnchanged(t *testing.T) {
	upstreams := newFakeUpstreams(t)
	upstreams.cdnLive.Store(false)
	sleeps := &sleepRecorder{}
	h := upstreams.harness(t, sleeps)
	video := testsupport.NewVideo(t, h.stores.Content, "asset-1")
	h.start(t)

	job := h.enqueue(t, video.ID, "asset-1")
	aborted := h.waitForStatus(t, job.ID, queue.StatusAborted)
	if aborted.ErrorKind != "upstream_timeout" || aborted.Stage != queue.StageRendition {
		t.Fatalf("unexpected aborted job: %#v", aborted)
	}
	// 24 polls probe the derived URL each, then one final probe.
	if heads := upstreams.headCalls.Load(); heads != 25 {
		t.Fatalf("expected 25 HEAD probes, got %d", heads)
	}
	if len(upstreams.moderationURLs) != 0 {
		t.Fatal("moderation must not be called")
	}

	unchanged, _ := h.stores.Content.GetVideo(context.Background(), video.ID)
	if unchanged.URL != video.URL || unchanged.Flagged {
		t.Fatalf("video must be untouched, got %#v", unchanged)
	}
}
