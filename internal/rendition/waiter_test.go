package rendition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipguard/internal/provider"
	"clipguard/internal/rendition"
	"clipguard/internal/services"
)

type stubClient struct {
	triggerErr  error
	triggers    int
	statusCalls int
	status      func(call int) (provider.RenditionStatus, error)
	live        map[string]bool
	probes      []string
}

func (s *stubClient) StartRendition(context.Context, string) error {
	s.triggers++
	return s.triggerErr
}

func (s *stubClient) RenditionStatus(context.Context, string) (provider.RenditionStatus, error) {
	s.statusCalls++
	return s.status(s.statusCalls)
}

func (s *stubClient) Probe(_ context.Context, url string) error {
	s.probes = append(s.probes, url)
	if s.live[url] {
		return nil
	}
	return errors.New("http 404")
}

func (s *stubClient) DerivedURL(playbackID string) string {
	return "https://stream.example.com/" + playbackID + "/high.mp4"
}

const derived = "https://stream.example.com/pb/high.mp4"

var readyAsset = provider.Asset{ID: "asset-1", Ready: true, PlaybackID: "pb"}

func noSleep(context.Context, time.Duration) error { return nil }

func TestWaitReportedReadyAndLive(t *testing.T) {
	stub := &stubClient{
		status: func(int) (provider.RenditionStatus, error) {
			return provider.RenditionStatus{Status: "ready", URL: "https://cdn.example.com/a.mp4"}, nil
		},
		live: map[string]bool{"https://cdn.example.com/a.mp4": true},
	}
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(noSleep))

	url, err := waiter.Wait(context.Background(), readyAsset)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if url != "https://cdn.example.com/a.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if stub.statusCalls != 1 || len(stub.probes) != 1 {
		t.Fatalf("expected one poll and one probe, got %d polls %d probes", stub.statusCalls, len(stub.probes))
	}
}

func TestWaitDerivedURLToleratesStatusLag(t *testing.T) {
	stub := &stubClient{
		status: func(int) (provider.RenditionStatus, error) {
			return provider.RenditionStatus{Status: "preparing", PercentComplete: 10}, nil
		},
		live: map[string]bool{derived: true},
	}
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(noSleep))

	url, err := waiter.Wait(context.Background(), readyAsset)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if url != derived {
		t.Fatalf("expected derived url, got %q", url)
	}
}

func TestWaitTriggerAndStatusErrorsAreNotFatal(t *testing.T) {
	stub := &stubClient{
		triggerErr: errors.New("409 conflict"),
		status: func(call int) (provider.RenditionStatus, error) {
			if call < 3 {
				return provider.RenditionStatus{}, errors.New("502 bad gateway")
			}
			return provider.RenditionStatus{PercentComplete: 100, URL: derived}, nil
		},
		live: map[string]bool{},
	}
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(func(context.Context, time.Duration) error {
		if stub.statusCalls == 2 {
			stub.live[derived] = true
		}
		return nil
	}))

	url, err := waiter.Wait(context.Background(), readyAsset)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if url != derived {
		t.Fatalf("unexpected url %q", url)
	}
	if stub.triggers != 1 {
		t.Fatalf("expected a single trigger, got %d", stub.triggers)
	}
}

func TestWaitHeadNeverSucceedsTimesOut(t *testing.T) {
	stub := &stubClient{
		status: func(int) (provider.RenditionStatus, error) {
			return provider.RenditionStatus{Status: "completed", URL: "https://cdn.example.com/dead.mp4"}, nil
		},
		live: map[string]bool{},
	}
	var slept time.Duration
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}))

	_, err := waiter.Wait(context.Background(), readyAsset)
	if !errors.Is(err, services.ErrUpstreamTimeout) {
		t.Fatalf("expected upstream timeout, got %v", err)
	}
	if stub.statusCalls != 24 {
		t.Fatalf("expected 24 polls, got %d", stub.statusCalls)
	}
	if slept != 120*time.Second {
		t.Fatalf("expected 120s of polling, got %s", slept)
	}
	// two probes per poll plus the final derived probe
	if len(stub.probes) != 24*2+1 {
		t.Fatalf("expected %d probes, got %d", 24*2+1, len(stub.probes))
	}
	if last := stub.probes[len(stub.probes)-1]; last != derived {
		t.Fatalf("expected final probe against derived url, got %q", last)
	}
}

func TestWaitHeadsReportedDerivedURLOncePerPoll(t *testing.T) {
	stub := &stubClient{
		status: func(int) (provider.RenditionStatus, error) {
			return provider.RenditionStatus{Status: "ready", URL: derived}, nil
		},
		live: map[string]bool{},
	}
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(noSleep))

	_, err := waiter.Wait(context.Background(), readyAsset)
	if !errors.Is(err, services.ErrUpstreamTimeout) {
		t.Fatalf("expected upstream timeout, got %v", err)
	}
	if len(stub.probes) != 24+1 {
		t.Fatalf("expected one HEAD per poll plus the final one, got %d", len(stub.probes))
	}
}

func TestWaitRequiresReadyAsset(t *testing.T) {
	stub := &stubClient{}
	waiter := rendition.NewWaiter(stub, rendition.DefaultConfig(), rendition.WithSleeper(noSleep))
	_, err := waiter.Wait(context.Background(), provider.Asset{ID: "asset-1"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if stub.triggers != 0 {
		t.Fatal("expected no trigger for unready asset")
	}
}
