// Package notestore owns the set of notes: a write-through cache over the
// note files in a storage.Provider.
//
// A Store is not safe for concurrent use. All calls are expected to come
// from one serialized stream, which the session package provides.
package notestore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quicknote/internal/apperr"
	"github.com/starford/quicknote/internal/checksum"
	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/storage"
)

// maxPathAttempts bounds the suffix search when two notes with the same
// title are created within one second.
const maxPathAttempts = 1000

// Store mediates between the in-memory cache and the note files.
type Store struct {
	provider storage.Provider
	logger   *slog.Logger
	now      func() time.Time

	cache map[string]models.Note
	// sums holds the checksum of the bytes last read or written per path,
	// so Reconcile can ignore events caused by our own writes.
	sums map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for path and timestamp generation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over provider. The cache starts empty and is filled lazily.
func New(provider storage.Provider, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		provider: provider,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]models.Note),
		sums:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll returns every note, newest first (path descending). Files that
// cannot be read or decoded are logged and skipped.
func (s *Store) ListAll() []models.Summary {
	seen := make(map[string]struct{}, len(s.cache))

	entries, err := s.provider.List()
	if err != nil {
		s.logger.Warn("notestore: list failed", slog.String("error", err.Error()))
	}
	for _, e := range entries {
		seen[e.Name] = struct{}{}
	}
	for p := range s.cache {
		seen[p] = struct{}{}
	}

	out := make([]models.Summary, 0, len(seen))
	for p := range seen {
		n, err := s.load(p)
		if err != nil {
			s.logger.Warn("notestore: skipping note",
				slog.String("path", p),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, n.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	return out
}

// Load returns the note at path, reading it from disk on a cache miss.
// A missing file or a name that is not a note file yields
// apperr.ErrNotFound, a malformed one apperr.ErrDecode.
func (s *Store) Load(path string) (models.Note, error) {
	return s.load(path)
}

func (s *Store) load(path string) (models.Note, error) {
	if n, ok := s.cache[path]; ok {
		return n, nil
	}
	if !storage.IsNoteName(path) {
		return models.Note{}, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	data, err := s.provider.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Note{}, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrIO, err)
	}
	n, err := models.Decode(path, data)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrDecode, err)
	}
	s.cache[path] = n
	s.sums[path] = checksum.Sum(data)
	return n, nil
}

// Create validates title, writes a new empty note and caches it.
// Titles that are empty after trimming fail with apperr.ErrValidation and
// touch nothing.
func (s *Store) Create(title string) (models.Note, error) {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title, validation.Required); err != nil {
		return models.Note{}, fmt.Errorf("%w: title %w", apperr.ErrValidation, err)
	}

	now := s.now()
	path, err := s.uniquePath(now, title)
	if err != nil {
		return models.Note{}, err
	}
	n := models.Note{
		Path:    path,
		Title:   title,
		Content: "",
		Created: now,
		Updated: now,
	}
	if err := s.write(n); err != nil {
		return models.Note{}, err
	}
	s.logger.Debug("notestore: created", slog.String("path", path))
	return n, nil
}

func (s *Store) uniquePath(now time.Time, title string) (string, error) {
	base := models.NewPath(now, title)
	for i := 1; i <= maxPathAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = models.WithSuffix(base, i)
		}
		if _, ok := s.cache[candidate]; ok {
			continue
		}
		_, err := s.provider.Read(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", apperr.ErrIO, err)
		}
	}
	return "", fmt.Errorf("%w: no free path for %q", apperr.ErrIO, base)
}

// Persist stores content as the note's new content. It is a no-op when
// content equals what is cached, and reports whether a write happened.
// On a cache miss the note is read from disk first so an unchanged buffer
// never triggers a write. A failed write leaves the cache untouched.
func (s *Store) Persist(path, content string) (bool, error) {
	n, err := s.load(path)
	if err != nil {
		return false, err
	}
	if n.Content == content {
		return false, nil
	}
	n.Content = content
	n.Updated = s.now()
	if err := s.write(n); err != nil {
		return false, err
	}
	s.logger.Debug("notestore: persisted", slog.String("path", path), slog.Int("bytes", len(content)))
	return true, nil
}

// Delete removes the note file and its cache entry. If removal fails the
// cache is left as it was.
func (s *Store) Delete(path string) error {
	if err := s.provider.Delete(path); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrIO, err)
	}
	delete(s.cache, path)
	delete(s.sums, path)
	s.logger.Debug("notestore: deleted", slog.String("path", path))
	return nil
}

// Reconcile re-reads path after an external change and reports whether
// the cached view changed. A vanished file is evicted; bytes identical to
// what the store last saw are ignored.
func (s *Store) Reconcile(path string) (bool, error) {
	data, err := s.provider.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		_, had := s.cache[path]
		delete(s.cache, path)
		delete(s.sums, path)
		return had, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", apperr.ErrIO, err)
	}

	if checksum.Same(s.sums[path], data) {
		return false, nil
	}
	n, err := models.Decode(path, data)
	if err != nil {
		// Keep the listing honest: a file that no longer decodes is not a note.
		_, had := s.cache[path]
		delete(s.cache, path)
		delete(s.sums, path)
		return had, fmt.Errorf("%w: %w", apperr.ErrDecode, err)
	}
	s.cache[path] = n
	s.sums[path] = checksum.Sum(data)
	return true, nil
}

// Cached reports whether path currently has a cache entry.
func (s *Store) Cached(path string) bool {
	_, ok := s.cache[path]
	return ok
}

func (s *Store) write(n models.Note) error {
	data, err := models.Encode(n)
	if err != nil {
		return fmt.Errorf("encode %s: %w", n.Path, err)
	}
	if err := s.provider.Write(n.Path, data); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrIO, err)
	}
	s.cache[n.Path] = n
	s.sums[n.Path] = checksum.Sum(data)
	return nil
}
