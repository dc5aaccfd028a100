// Package database opens the clipguard SQLite file and provides the busy
// retry and schema bookkeeping shared by the queue and content stores.
//
// Both stores live in one database file so a single WAL journal covers job
// bookkeeping and the content flags the pipeline writes. Each store owns a
// component row in schema_version; bump that store's version when its DDL
// changes. Users clear the database to adopt a new schema.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// DB is an open SQLite database plus its on-disk location.
type DB struct {
	*sql.DB
	path string
}

// Open initializes or connects to the database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	// modernc applies _pragma parameters to every new connection.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer connection keeps transactions in this process from
	// contending with each other. Callers must not issue pool queries while
	// holding rows or a transaction.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
        component TEXT PRIMARY KEY,
        version INTEGER NOT NULL
    )`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema_version: %w", err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file location.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// EnsureSchema creates the component's tables on first use and verifies the
// recorded version afterwards.
func (d *DB) EnsureSchema(ctx context.Context, component string, version int, ddl string) error {
	var recorded int
	err := d.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE component = ?", component).Scan(&recorded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return d.createSchema(ctx, component, version, ddl)
	case err != nil:
		return fmt.Errorf("read %s schema version: %w", component, err)
	case recorded != version:
		return fmt.Errorf("%w: %s tables have version %d, expected %d (run 'clipguard queue clear --all' or delete %s)",
			ErrSchemaMismatch, component, recorded, version, d.path)
	}
	return nil
}

// SchemaVersion returns the recorded version for component, or 0 when absent.
func (d *DB) SchemaVersion(ctx context.Context, component string) (int, error) {
	var recorded int
	err := d.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE component = ?", component).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return recorded, err
}

func (d *DB) createSchema(ctx context.Context, component string, version int, ddl string) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s schema: %w", component, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (component, version) VALUES (?, ?)", component, version); err != nil {
		return fmt.Errorf("record %s schema version: %w", component, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s schema: %w", component, err)
	}
	return nil
}

// ExecRetry runs a statement, retrying while SQLite reports the database as busy.
func (d *DB) ExecRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := RetryOnBusy(ctx, func() error {
		res, execErr = d.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// InTx runs fn inside a transaction, retrying the whole transaction on SQLITE_BUSY.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return RetryOnBusy(ctx, func() error {
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// RetryOnBusy retries op with capped exponential backoff while it fails with SQLITE_BUSY.
func RetryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// IsBusy reports whether err is SQLITE_BUSY.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Columns returns the column names of table, or nil when the table is absent.
func (d *DB) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// IntegrityCheck runs PRAGMA integrity_check and reports whether it passed.
func (d *DB) IntegrityCheck(ctx context.Context) (bool, error) {
	var result string
	if err := d.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return false, fmt.Errorf("integrity check: %w", err)
	}
	return strings.EqualFold(result, "ok"), nil
}
