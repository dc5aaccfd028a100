// Package logging assembles structured slog loggers and formatting helpers used
// across clipguard.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job code can tag log lines
// with job, video, and asset identifiers plus the current stage. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
