// Command clipguard runs the moderation daemon and offers operator tooling
// around it: enqueueing videos, inspecting and repairing the job queue, and
// overriding moderation decisions.
//
// Commands that only read or repair local state open the SQLite database
// directly, so they work whether or not the daemon is running.
package main
