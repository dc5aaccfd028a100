// Package services defines shared utilities consumed by the moderation job
// stages and their upstream clients.
//
// Key responsibilities:
//   - Context helpers that stamp job, video, and asset identifiers, stage
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. Details extracts the
//     marker, stage, and operation for structured logs, and Retryable decides
//     whether a failed job is rescheduled or aborted.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
