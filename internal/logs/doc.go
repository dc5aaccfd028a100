// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, optionally
// waiting for new lines, so callers can implement follow mode by feeding the
// returned offset back in. Filters narrow the output to a single job.
package logs
