// Package api defines the wire-format types shared by the daemon HTTP API and
// the CLI. It converts queue jobs, content records and workflow status into
// transport-friendly DTOs so neither side couples to internal models.
//
// # Key Types
//
// JobView: transport representation of a moderation job, including the stage
// it reached, its error classification and the recorded verdict.
//
// VideoView: a video with its owning post's flag.
//
// WorkflowStatus / DaemonStatus: worker pool state, queue counts and the last
// job processed.
//
// EnqueueRequest: the body accepted by POST /api/jobs, validated with
// go-playground/validator.
//
// # Design Notes
//
// DTOs use camelCase JSON tags except the enqueue request, which keeps the
// snake_case field names upstream callers already send. Timestamps use
// RFC3339 with milliseconds in UTC.
package api
