package queue

import (
	"context"
	"errors"
	"fmt"

	"clipguard/internal/database"
)

// Store manages moderation job persistence backed by SQLite.
type Store struct {
	db *database.DB
}

// NewStore prepares the job tables on db. The caller owns db and closes it.
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("queue store: database is nil")
	}
	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("queue store: %w", err)
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.db.Path()
}
