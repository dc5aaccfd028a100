package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipguard/internal/queue"
	"clipguard/internal/testsupport"
)

func mustEnqueue(t *testing.T, store *queue.Store, videoID int64, assetID string) *queue.Job {
	t.Helper()
	job, created, err := store.Enqueue(context.Background(), videoID, assetID, 3)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !created {
		t.Fatalf("expected job for video %d to be created", videoID)
	}
	return job
}

func mustClaim(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job, err := store.ClaimNext(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job to be claimed")
	}
	return job
}

func TestEnqueueCreatesQueuedJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job := mustEnqueue(t, store, 7, "asset-7")
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusQueued || job.Attempts != 0 || job.MaxAttempts != 3 {
		t.Fatalf("unexpected job: %#v", job)
	}

	fetched, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.AssetID != "asset-7" || fetched.VideoID != 7 {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, _, err := store.Enqueue(ctx, 0, "asset", 3); !errors.Is(err, queue.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob for zero video id, got %v", err)
	}
	if _, _, err := store.Enqueue(ctx, 1, "  ", 3); !errors.Is(err, queue.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob for blank asset id, got %v", err)
	}
}

func TestEnqueueIsIdempotentWhileActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := mustEnqueue(t, store, 1, "asset-1")
	again, created, err := store.Enqueue(ctx, 1, "asset-1", 3)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing job %d, got %d (created=%v)", first.ID, again.ID, created)
	}

	claimed := mustClaim(t, store)
	again, created, err = store.Enqueue(ctx, 1, "asset-1", 3)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if created || again.ID != claimed.ID {
		t.Fatalf("expected running job %d to be returned, got %d", claimed.ID, again.ID)
	}

	if err := store.Complete(ctx, claimed.ID, "https://cdn/x.mp4", queue.VerdictClean); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	next, created, err := store.Enqueue(ctx, 1, "asset-1", 3)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !created || next.ID == first.ID {
		t.Fatalf("expected a new job after completion, got %#v", next)
	}
}

func TestClaimNextIsFIFO(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := mustEnqueue(t, store, 1, "a")
	b := mustEnqueue(t, store, 2, "b")

	first := mustClaim(t, store)
	if first.ID != a.ID {
		t.Fatalf("expected job %d first, got %d", a.ID, first.ID)
	}
	if first.Status != queue.StatusRunning || first.Attempts != 1 || first.Stage != queue.StageReadiness {
		t.Fatalf("unexpected claimed job: %#v", first)
	}
	if first.StartedAt == nil || first.LastHeartbeat == nil {
		t.Fatal("expected started_at and last_heartbeat to be set")
	}
	second := mustClaim(t, store)
	if second.ID != b.ID {
		t.Fatalf("expected job %d second, got %d", b.ID, second.ID)
	}

	none, err := store.ClaimNext(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no job, got %#v", none)
	}
}

func TestClaimNextHonorsNextAttemptAt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mustEnqueue(t, store, 1, "a")
	job := mustClaim(t, store)
	retryAt := time.Now().Add(time.Minute)
	failure := queue.Failure{Kind: "upstream_timeout", Stage: queue.StageRendition, Message: "never reachable"}
	if err := store.Reschedule(ctx, job.ID, failure, retryAt); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}

	if got, err := store.ClaimNext(ctx, time.Now()); err != nil || got != nil {
		t.Fatalf("expected nothing due yet, got %#v (err=%v)", got, err)
	}
	got, err := store.ClaimNext(ctx, retryAt.Add(time.Second))
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Fatalf("expected rescheduled job to be claimed, got %#v", got)
	}
	if got.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", got.Attempts)
	}
	if got.ErrorMessage != "never reachable" || got.ErrorKind != "upstream_timeout" {
		t.Fatalf("expected failure details kept, got %q/%q", got.ErrorMessage, got.ErrorKind)
	}
}

func TestCompleteAndAbortRequireRunning(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	queued := mustEnqueue(t, store, 1, "a")
	if err := store.Complete(ctx, queued.ID, "u", queue.VerdictClean); !errors.Is(err, queue.ErrJobNotRunning) {
		t.Fatalf("expected ErrJobNotRunning, got %v", err)
	}

	job := mustClaim(t, store)
	if err := store.UpdateStage(ctx, job.ID, queue.StageModeration); err != nil {
		t.Fatalf("UpdateStage failed: %v", err)
	}
	if err := store.Abort(ctx, job.ID, queue.Failure{Kind: "moderation", Stage: queue.StageModeration, Message: "boom"}); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	aborted, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if aborted.Status != queue.StatusAborted || aborted.FinishedAt == nil || aborted.Stage != queue.StageModeration {
		t.Fatalf("unexpected aborted job: %#v", aborted)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); !errors.Is(err, queue.ErrJobNotRunning) {
		t.Fatalf("expected heartbeat on aborted job to fail, got %v", err)
	}
}

func TestResetRunningRefundsAttempt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mustEnqueue(t, store, 1, "a")
	job := mustClaim(t, store)

	count, err := store.ResetRunning(ctx)
	if err != nil {
		t.Fatalf("ResetRunning failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reset, got %d", count)
	}
	reset, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reset.Status != queue.StatusQueued || reset.Attempts != 0 || reset.LastHeartbeat != nil {
		t.Fatalf("unexpected reset job: %#v", reset)
	}
	if reset.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("expected stop reason, got %q", reset.ErrorMessage)
	}
}

func TestRequeueRefundsAttempt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mustEnqueue(t, store, 1, "a")
	job := mustClaim(t, store)
	if err := store.Requeue(ctx, job.ID, queue.DaemonStopReason); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	again := mustClaim(t, store)
	if again.ID != job.ID || again.Attempts != 1 {
		t.Fatalf("expected same job on first attempt, got %#v", again)
	}
}

func TestReclaimStale(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	one := mustEnqueue(t, store, 1, "a")
	_, _, err := store.Enqueue(ctx, 2, "b", 1)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	mustClaim(t, store)
	exhausted := mustClaim(t, store)

	count, err := store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs reclaimed, got %d", count)
	}

	requeued, _ := store.GetByID(ctx, one.ID)
	if requeued.Status != queue.StatusQueued || requeued.Attempts != 1 {
		t.Fatalf("expected job with attempts left requeued, got %#v", requeued)
	}
	aborted, _ := store.GetByID(ctx, exhausted.ID)
	if aborted.Status != queue.StatusAborted || aborted.FinishedAt == nil {
		t.Fatalf("expected exhausted job aborted, got %#v", aborted)
	}

	fresh, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if fresh != 0 {
		t.Fatalf("expected nothing to reclaim, got %d", fresh)
	}
}

func TestRetryAborted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, video := range []int64{1, 2} {
		mustEnqueue(t, store, video, "asset")
		job := mustClaim(t, store)
		if err := store.Abort(ctx, job.ID, queue.Failure{Kind: "upstream_timeout", Message: "boom"}); err != nil {
			t.Fatalf("Abort failed: %v", err)
		}
	}
	// Video 2 already has a fresh job, so its aborted job stays put.
	active := mustEnqueue(t, store, 2, "asset")

	count, err := store.RetryAborted(ctx)
	if err != nil {
		t.Fatalf("RetryAborted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job retried, got %d", count)
	}

	jobs, err := store.List(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 queued jobs, got %d", len(jobs))
	}
	if jobs[0].VideoID != 1 || jobs[0].Attempts != 0 || jobs[0].ErrorMessage != "" {
		t.Fatalf("unexpected retried job: %#v", jobs[0])
	}
	if jobs[1].ID != active.ID {
		t.Fatalf("expected active job %d to remain, got %d", active.ID, jobs[1].ID)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := mustEnqueue(t, store, 1, "a")
	b := mustEnqueue(t, store, 2, "b")
	mustEnqueue(t, store, 3, "c")
	claimed := mustClaim(t, store)
	if err := store.Complete(ctx, claimed.ID, "https://cdn/a.mp4", queue.VerdictFlagged); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != a.ID {
		t.Fatalf("unexpected list: %d jobs", len(all))
	}
	if all[0].Verdict != queue.VerdictFlagged || all[0].RenditionURL != "https://cdn/a.mp4" {
		t.Fatalf("expected verdict recorded, got %#v", all[0])
	}

	queued, err := store.List(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(queued) != 2 || queued[0].ID != b.ID {
		t.Fatalf("unexpected queued list: %#v", queued)
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mustEnqueue(t, store, 1, "a")
	mustEnqueue(t, store, 2, "b")
	running := mustClaim(t, store)

	removed, err := store.Remove(ctx, running.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("running job must not be removed")
	}

	count, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job cleared, got %d", count)
	}
	if err := store.Complete(ctx, running.ID, "u", queue.VerdictClean); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	count, err = store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 completed job cleared, got %d", count)
	}
}

func TestHealthAndCheckHealth(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mustEnqueue(t, store, 1, "a")
	mustEnqueue(t, store, 2, "b")
	job := mustClaim(t, store)
	if err := store.Reschedule(ctx, job.ID, queue.Failure{Kind: "transient"}, time.Now()); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Queued != 2 || health.Retrying != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}

	diag, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !diag.DatabaseExists || !diag.DatabaseReadable || !diag.TableExists || !diag.IntegrityCheck {
		t.Fatalf("unexpected diagnostics: %#v", diag)
	}
	if len(diag.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", diag.MissingColumns)
	}
	if diag.SchemaVersion != 1 || diag.TotalJobs != 2 {
		t.Fatalf("unexpected schema version %d or total %d", diag.SchemaVersion, diag.TotalJobs)
	}
}
