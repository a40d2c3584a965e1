// Package autosave persists the active note's buffer on a fixed cadence.
package autosave

import (
	"log/slog"
)

// Source exposes the active note and its live editor buffer.
type Source interface {
	Active() (path, content string, ok bool)
}

// Persister writes content when it differs from the last saved snapshot
// and reports whether it wrote.
type Persister interface {
	Persist(path, content string) (bool, error)
}

// Outcome describes what a single tick did.
type Outcome int

// Tick outcomes.
const (
	Skipped   Outcome = iota // no active note
	Unchanged                // buffer matched the saved snapshot
	Saved
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Policy runs one save attempt per tick. Failures are logged and never
// retried beyond the next tick, which sees the same diff and tries again.
type Policy struct {
	src    Source
	store  Persister
	logger *slog.Logger

	failures int
}

// New creates a Policy.
func New(src Source, store Persister, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{src: src, store: store, logger: logger}
}

// Tick persists the active buffer if it changed. The returned path is the
// active note, empty when Skipped.
func (p *Policy) Tick() (string, Outcome) {
	path, content, ok := p.src.Active()
	if !ok {
		return "", Skipped
	}
	wrote, err := p.store.Persist(path, content)
	if err != nil {
		p.failures++
		p.logger.Warn("autosave: persist failed",
			slog.String("path", path),
			slog.Int("consecutive_failures", p.failures),
			slog.String("error", err.Error()))
		return path, Failed
	}
	if p.failures > 0 {
		p.logger.Info("autosave: recovered", slog.String("path", path), slog.Int("after_failures", p.failures))
		p.failures = 0
	}
	if !wrote {
		return path, Unchanged
	}
	p.logger.Debug("autosave: saved", slog.String("path", path))
	return path, Saved
}

// Failures returns the number of consecutive failed ticks.
func (p *Policy) Failures() int {
	return p.failures
}
