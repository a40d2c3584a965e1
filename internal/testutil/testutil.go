// Package testutil provides shared test helpers for setting up note
// directories, stores and state databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/quicknote/internal/notestore"
	"github.com/starford/quicknote/internal/statedb"
	"github.com/starford/quicknote/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Clock is a manually advanced time source.
type Clock struct{ T time.Time }

// NewClock starts a clock at a fixed local instant.
func NewClock() *Clock {
	return &Clock{T: time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)}
}

// Now returns the current clock value.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// NotesDir creates a temporary notes directory with a storage.Provider.
func NotesDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Store creates a notestore.Store over a fresh temporary directory, driven
// by the returned clock. Advance the clock between creates so paths differ
// by at least one second.
func Store(t *testing.T) (*notestore.Store, *Clock, string) {
	t.Helper()
	dir, fs := NotesDir(t)
	clk := NewClock()
	return notestore.New(fs, Logger(), notestore.WithClock(clk.Now)), clk, dir
}

// StateDB opens a temporary SQLite state database that is closed on cleanup.
func StateDB(t *testing.T) *statedb.DB {
	t.Helper()
	db, err := statedb.Open(filepath.Join(t.TempDir(), "quicknote-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
