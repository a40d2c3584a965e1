// Package selection tracks which note is active and reconciles that
// choice across creation, reloads and deletion.
package selection

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/quicknote/internal/apperr"
	"github.com/starford/quicknote/internal/models"
)

// Mode is the controller state.
type Mode int

// Controller states.
const (
	Idle Mode = iota
	ComposingNew
	Editing
)

// String returns the mode name used in logs and API payloads.
func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case ComposingNew:
		return "composing"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Store is the subset of notestore.Store the controller drives.
type Store interface {
	ListAll() []models.Summary
	Load(path string) (models.Note, error)
	Create(title string) (models.Note, error)
	Persist(path, content string) (bool, error)
	Delete(path string) error
}

// Confirmer answers the yes/no question asked before a non-forced delete.
type Confirmer interface {
	ConfirmDelete(path, title string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(path, title string) bool

// ConfirmDelete calls f.
func (f ConfirmFunc) ConfirmDelete(path, title string) bool { return f(path, title) }

// State is a snapshot of the controller for presenters.
type State struct {
	Mode    Mode   `json:"-"`
	Path    string `json:"path,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Controller is the three-state selection machine: Idle, ComposingNew, or
// Editing(path). In Editing it also holds the editor buffer.
type Controller struct {
	store         Store
	logger        *slog.Logger
	flushOnSwitch bool

	mode   Mode
	path   string
	title  string
	buffer string
}

// New creates a controller in the Idle state.
// With flushOnSwitch the outgoing buffer is persisted synchronously before
// another note becomes active.
func New(store Store, logger *slog.Logger, flushOnSwitch bool) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, logger: logger, flushOnSwitch: flushOnSwitch}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	return State{Mode: c.mode, Path: c.path, Title: c.title, Content: c.buffer}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Active returns the active note path and its live buffer. ok is false
// unless a note is being edited.
func (c *Controller) Active() (path, content string, ok bool) {
	if c.mode != Editing {
		return "", "", false
	}
	return c.path, c.buffer, true
}

// StartComposing enters ComposingNew. The previous note's buffer is not
// touched beyond the optional switch flush.
func (c *Controller) StartComposing() error {
	if err := c.flushOutgoing(); err != nil {
		return err
	}
	c.set(ComposingNew, "", "", "")
	return nil
}

// ConfirmTitle creates a note from title and makes it active with an empty
// buffer. Outside ComposingNew, or with a blank title, it does nothing and
// reports false.
func (c *Controller) ConfirmTitle(title string) (models.Note, bool, error) {
	if c.mode != ComposingNew {
		return models.Note{}, false, nil
	}
	n, err := c.store.Create(title)
	if err != nil {
		if isValidation(err) {
			return models.Note{}, false, nil
		}
		return models.Note{}, false, err
	}
	c.set(Editing, n.Path, n.Title, "")
	return n, true, nil
}

// Select makes path active. Reselecting the active note is a no-op. If the
// note cannot be loaded the current state is kept and the error returned.
func (c *Controller) Select(path string) (bool, error) {
	if c.mode == Editing && c.path == path {
		return false, nil
	}
	n, err := c.store.Load(path)
	if err != nil {
		return false, err
	}
	if err := c.flushOutgoing(); err != nil {
		return false, err
	}
	c.set(Editing, n.Path, n.Title, n.Content)
	return true, nil
}

// Edit replaces the buffer of the active note. Edits addressed to any
// other note fail with apperr.ErrNotActive.
func (c *Controller) Edit(path, content string) error {
	if c.mode != Editing || c.path != path {
		return fmt.Errorf("%w: %s", apperr.ErrNotActive, path)
	}
	c.buffer = content
	return nil
}

// Adopt replaces the active buffer with content reloaded from disk.
func (c *Controller) Adopt(n models.Note) {
	if c.mode == Editing && c.path == n.Path {
		c.title = n.Title
		c.buffer = n.Content
	}
}

// Flush persists the active buffer, if any.
func (c *Controller) Flush() (bool, error) {
	path, content, ok := c.Active()
	if !ok {
		return false, nil
	}
	return c.store.Persist(path, content)
}

// Delete removes path. Unless forced, confirm must answer yes; a missing
// or negative answer yields apperr.ErrConfirmationRequired. After a
// successful delete the most recent remaining note becomes active, or a
// new composition starts when none remain.
func (c *Controller) Delete(path string, forced bool, confirm Confirmer) error {
	if !forced {
		title := ""
		if n, err := c.store.Load(path); err == nil {
			title = n.Title
		}
		if confirm == nil || !confirm.ConfirmDelete(path, title) {
			return apperr.ErrConfirmationRequired
		}
	}

	if err := c.store.Delete(path); err != nil {
		return err
	}

	if c.mode == Editing && c.path == path {
		c.set(Idle, "", "", "")
	}
	c.applyFallback()
	return nil
}

// Forget drops the active note after it disappeared outside the
// controller, then applies the delete fallback.
func (c *Controller) Forget(path string) {
	if c.mode == Editing && c.path == path {
		c.set(Idle, "", "", "")
		c.applyFallback()
	}
}

// Restore makes path active at startup when it still loads, otherwise
// starts composing.
func (c *Controller) Restore(path string) {
	if path != "" {
		if n, err := c.store.Load(path); err == nil {
			c.set(Editing, n.Path, n.Title, n.Content)
			return
		}
		c.logger.Info("selection: last active note unavailable", slog.String("path", path))
	}
	c.set(ComposingNew, "", "", "")
}

func (c *Controller) applyFallback() {
	for _, s := range c.store.ListAll() {
		if _, err := c.Select(s.Path); err != nil {
			c.logger.Warn("selection: fallback select failed",
				slog.String("path", s.Path),
				slog.String("error", err.Error()))
			continue
		}
		return
	}
	if c.mode != Editing {
		c.set(ComposingNew, "", "", "")
	}
}

func (c *Controller) flushOutgoing() error {
	if !c.flushOnSwitch {
		return nil
	}
	if _, err := c.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", c.path, err)
	}
	return nil
}

func (c *Controller) set(mode Mode, path, title, buffer string) {
	c.mode, c.path, c.title, c.buffer = mode, path, title, buffer
}

func isValidation(err error) bool {
	return errors.Is(err, apperr.ErrValidation)
}
