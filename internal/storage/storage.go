// Package storage defines the flat note-directory abstraction.
package storage

import "time"

// Entry describes one note file found in the directory.
type Entry struct {
	Name    string
	ModTime time.Time
}

// Provider is the interface for note file operations. Names are plain
// file names inside the notes directory.
type Provider interface {
	// List returns every note file in the directory, in no particular order.
	List() ([]Entry, error)
	// Read returns the raw bytes of the named file.
	Read(name string) ([]byte, error)
	// Write atomically replaces the named file with content.
	Write(name string, content []byte) error
	// Delete removes the named file.
	Delete(name string) error
}
