// Package workflow drains the moderation queue.
//
// The Manager runs a bounded pool of workers. Each worker claims the oldest
// due job, then drives it through readiness, rendition, moderation and
// propagation in order. A failed attempt is rescheduled with exponential
// backoff while attempts remain, otherwise the job is aborted and the video
// is left exactly as it was. With one worker (the default) jobs are strictly
// serialized: a job's moderation call never starts before the previous job
// has finished writing its verdict.
//
// Running jobs send heartbeats; jobs whose heartbeat goes stale are reclaimed
// so a crashed worker never strands a video.
package workflow
