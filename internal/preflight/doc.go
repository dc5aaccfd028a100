// Package preflight checks the filesystem paths and upstream services the
// moderation daemon depends on.
//
// The daemon logs every failed check at startup without refusing to start,
// since a provider outage should delay jobs rather than block the queue. The
// CLI "clipguard config validate --check" prints the same results.
package preflight
