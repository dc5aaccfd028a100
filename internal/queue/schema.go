package queue

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	schemaComponent = "queue"
	// schemaVersion is the current schema version. Bump this when the schema changes.
	schemaVersion = 1
)

func (s *Store) initSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, schemaComponent, schemaVersion, schemaSQL)
}
