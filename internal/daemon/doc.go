// Package daemon coordinates the long-running clipguard process.
//
// It ties configuration, the shared SQLite stores, the workflow manager and
// the verdict event publisher into one lifecycle, guarded by a flock-based
// lock so only one instance drives the queue. The daemon also serves the HTTP
// API used by the CLI and upstream upload handlers to enqueue moderation jobs
// and inspect queue state, plus the Prometheus /metrics endpoint.
//
// Keep orchestration here: pipeline steps live in their own packages while
// the daemon focuses on startup, shutdown and the outer API surface.
package daemon
