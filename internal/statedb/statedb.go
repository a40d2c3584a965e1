// Package statedb persists UI session state (the last active note) in SQLite
// so a restart can reopen where the user left off. Note data never lives here.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS session_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const keyLastActive = "last_active"

// DB wraps a sql.DB with session-state operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("statedb: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("statedb: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("statedb: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// LastActive returns the recorded active note path, or "" if none.
func (db *DB) LastActive(ctx context.Context) (string, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM session_state WHERE key = ?`, keyLastActive).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("statedb: last active: %w", err)
	}
	return v, nil
}

// SetLastActive records path as the active note.
func (db *DB) SetLastActive(ctx context.Context, path string) error {
	return db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO session_state (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value      = excluded.value,
				updated_at = excluded.updated_at
		`, keyLastActive, path, time.Now())
		return err
	})
}

// ClearLastActive forgets the active note.
func (db *DB) ClearLastActive(ctx context.Context) error {
	return db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, keyLastActive)
		return err
	})
}

// withRetry retries fn on transient SQLite lock errors.
func (db *DB) withRetry(ctx context.Context, fn func() error) error {
	err := retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.MaxDelay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isLocked),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("statedb: %w", err)
	}
	return nil
}

func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
