// Package queue persists moderation jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// Jobs move QUEUED -> RUNNING -> COMPLETED or ABORTED. A failed attempt either
// returns the job to QUEUED with a next_attempt_at in the future or, once its
// attempts are spent, aborts it. ClaimNext hands out the oldest eligible job in
// a single UPDATE ... RETURNING statement so concurrent workers never share a
// job. At most one QUEUED or RUNNING job exists per video; Enqueue returns that
// job instead of creating a duplicate.
//
// The Store also tracks heartbeats, reclaims jobs whose worker went silent,
// and reports stats and database health for the CLI. When you change
// schema.sql, bump schemaVersion in schema.go.
package queue
