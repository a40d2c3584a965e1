// Package models defines the domain types for QuickNote.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

const (
	// Ext is the file extension of every note file.
	Ext = ".json"

	// DefaultTitle is substituted when a note file carries no title.
	DefaultTitle = "Untitled"

	pathTimeLayout = "20060102150405"
)

// Note is one persisted note. Path is the file name inside the notes
// directory and never changes once the note exists.
type Note struct {
	Path    string    `json:"-"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Summary is the lightweight (path, title) pair shown in the note list.
type Summary struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Summary returns the list entry for n.
func (n Note) Summary() Summary {
	return Summary{Path: n.Path, Title: n.Title}
}

// wireNote is the on-disk shape. Pointers distinguish a missing field
// from an empty one.
type wireNote struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Created string  `json:"created"`
	Updated string  `json:"updated"`
}

// MarshalJSON encodes exactly the four persisted fields.
func (n Note) MarshalJSON() ([]byte, error) {
	title, content := n.Title, n.Content
	return json.Marshal(wireNote{
		Title:   &title,
		Content: &content,
		Created: formatTime(n.Created),
		Updated: formatTime(n.Updated),
	})
}

// UnmarshalJSON decodes a note file. Missing title and content fall back
// to DefaultTitle and "". Timestamps are parsed leniently so files written
// by older versions (naive local ISO-8601) still load.
func (n *Note) UnmarshalJSON(data []byte) error {
	var w wireNote
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n.Title = DefaultTitle
	if w.Title != nil {
		n.Title = *w.Title
	}
	n.Content = ""
	if w.Content != nil {
		n.Content = *w.Content
	}
	n.Created = parseTime(w.Created)
	n.Updated = parseTime(w.Updated)
	return nil
}

// ErrNotObject is returned by Decode for valid JSON that is not an object,
// such as a bare null.
var ErrNotObject = errors.New("note file is not a JSON object")

// Decode parses the bytes of the note file at path.
func Decode(path string, data []byte) (Note, error) {
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return Note{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return Note{}, fmt.Errorf("decode %s: %w", path, ErrNotObject)
	}
	n.Path = path
	return n, nil
}

// Encode serializes n for storage.
func Encode(n Note) ([]byte, error) {
	return json.MarshalIndent(n, "", "  ")
}

// NewPath derives a note file name from its creation time and title.
// Names sort lexically in creation order at second resolution.
func NewPath(created time.Time, title string) string {
	return created.Format(pathTimeLayout) + "_" + SanitizeTitle(title) + Ext
}

// WithSuffix returns path with a numeric disambiguator before the extension,
// e.g. "20240101120000_Todo_2.json".
func WithSuffix(path string, n int) string {
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, Ext), n, Ext)
}

// SanitizeTitle maps a title onto a safe file name fragment: whitespace
// becomes '_', separators and control characters become '-'.
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case r == '/', r == '\\', r == ':', unicode.IsControl(r):
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
