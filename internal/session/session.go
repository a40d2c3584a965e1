// Package session serializes every note operation onto one goroutine.
//
// Concurrency model: Run owns the note store, the selection controller and
// the autosave policy. User actions arrive as closures over a channel and
// autosave ticks arrive from a ticker in the same select loop, so no two
// mutations ever overlap and no locks are needed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/quicknote/internal/apperr"
	"github.com/starford/quicknote/internal/autosave"
	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/notestore"
	"github.com/starford/quicknote/internal/selection"
)

// Event kinds emitted to the Notifier.
const (
	EventCreated   = "note.created"
	EventSaved     = "note.saved"
	EventDeleted   = "note.deleted"
	EventChanged   = "note.changed"
	EventReloaded  = "note.reloaded"
	EventSelection = "selection.changed"
)

// Event describes a change presenters may want to re-render for.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// Notifier receives events from the session loop. It must not block.
type Notifier func(Event)

// StateRecorder persists which note was last active.
type StateRecorder interface {
	LastActive(ctx context.Context) (string, error)
	SetLastActive(ctx context.Context, path string) error
	ClearLastActive(ctx context.Context) error
}

// Config controls session timing and durability.
type Config struct {
	// Interval is the autosave tick period.
	Interval time.Duration
	// FlushOnSwitch persists the outgoing buffer before the active note changes.
	FlushOnSwitch bool
	// Restore reopens the last active note at startup.
	Restore bool
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notify = n
	}
}

// WithStateRecorder enables last-active tracking.
func WithStateRecorder(r StateRecorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Session is the single-threaded owner of note state.
type Session struct {
	store    *notestore.Store
	sel      *selection.Controller
	policy   *autosave.Policy
	recorder StateRecorder
	notify   Notifier
	logger   *slog.Logger
	cfg      Config

	reqCh chan func()
	done  chan struct{}

	// ctx is the Run context, valid only inside the loop.
	ctx      context.Context
	recorded string
}

// New creates a Session over store. Nothing runs until Run is called.
func New(store *notestore.Store, cfg Config, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	sel := selection.New(store, logger, cfg.FlushOnSwitch)
	s := &Session{
		store:  store,
		sel:    sel,
		policy: autosave.New(sel, store, logger),
		notify: func(Event) {},
		logger: logger,
		cfg:    cfg,
		reqCh:  make(chan func()),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes requests and autosave ticks until ctx is cancelled, then
// persists the active note one last time and returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.ctx = ctx

	s.start()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.tick()
		case fn := <-s.reqCh:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) start() {
	last := ""
	if s.cfg.Restore && s.recorder != nil {
		var err error
		last, err = s.recorder.LastActive(s.ctx)
		if err != nil {
			s.logger.Warn("session: read last active failed", slog.String("error", err.Error()))
		}
	}
	s.sel.Restore(last)
	s.observe(selection.State{})
	s.logger.Info("session: started",
		slog.String("mode", s.sel.Mode().String()),
		slog.Duration("autosave_interval", s.cfg.Interval))
}

func (s *Session) tick() {
	path, out := s.policy.Tick()
	if out == autosave.Saved {
		s.notify(Event{Kind: EventSaved, Path: path})
	}
}

func (s *Session) shutdown() {
	// The Run context is already cancelled; finish bookkeeping regardless.
	s.ctx = context.WithoutCancel(s.ctx)
	path, _, _ := s.sel.Active()
	wrote, err := s.sel.Flush()
	if err != nil {
		s.logger.Error("session: final flush failed", slog.String("path", path), slog.String("error", err.Error()))
	} else if wrote {
		s.logger.Info("session: final flush", slog.String("path", path))
	}
	s.logger.Info("session: stopped")
}

// observe records and announces a selection change relative to prev.
func (s *Session) observe(prev selection.State) {
	cur := s.sel.State()
	if cur.Mode == prev.Mode && cur.Path == prev.Path {
		return
	}
	s.notify(Event{Kind: EventSelection, Path: cur.Path, Mode: cur.Mode.String()})

	if s.recorder == nil || cur.Path == s.recorded {
		return
	}
	var err error
	if cur.Mode == selection.Editing {
		err = s.recorder.SetLastActive(s.ctx, cur.Path)
	} else {
		err = s.recorder.ClearLastActive(s.ctx)
	}
	if err != nil {
		s.logger.Warn("session: record last active failed", slog.String("error", err.Error()))
		return
	}
	s.recorded = cur.Path
}

// call runs fn on the session loop and waits for it to finish.
func (s *Session) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.reqCh <- req:
	case <-s.done:
		return apperr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// do is call for functions with a result.
func do[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if callErr := s.call(ctx, func() { out, err = fn() }); callErr != nil {
		var zero T
		return zero, callErr
	}
	return out, err
}

// List returns the ordered note list.
func (s *Session) List(ctx context.Context) ([]models.Summary, error) {
	return do(ctx, s, func() ([]models.Summary, error) {
		return s.store.ListAll(), nil
	})
}

// Load returns a single note without changing the selection.
func (s *Session) Load(ctx context.Context, path string) (models.Note, error) {
	return do(ctx, s, func() (models.Note, error) {
		return s.store.Load(path)
	})
}

// State returns the selection snapshot including the live buffer.
func (s *Session) State(ctx context.Context) (selection.State, error) {
	return do(ctx, s, func() (selection.State, error) {
		return s.sel.State(), nil
	})
}

// Compose enters new-note mode.
func (s *Session) Compose(ctx context.Context) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		prev := s.sel.State()
		err := s.sel.StartComposing()
		s.observe(prev)
		return struct{}{}, err
	})
	return err
}

// ConfirmTitle creates the note being composed. A blank title is silently
// rejected and reports created=false.
func (s *Session) ConfirmTitle(ctx context.Context, title string) (models.Note, bool, error) {
	type result struct {
		note models.Note
		ok   bool
	}
	r, err := do(ctx, s, func() (result, error) {
		prev := s.sel.State()
		n, ok, err := s.sel.ConfirmTitle(title)
		if ok {
			s.notify(Event{Kind: EventCreated, Path: n.Path})
		}
		s.observe(prev)
		return result{n, ok}, err
	})
	return r.note, r.ok, err
}

// Select makes path the active note.
func (s *Session) Select(ctx context.Context, path string) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		prev := s.sel.State()
		_, err := s.sel.Select(path)
		s.observe(prev)
		return struct{}{}, err
	})
	return err
}

// Edit replaces the editor buffer of the active note. The next autosave
// tick persists it.
func (s *Session) Edit(ctx context.Context, path, content string) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.sel.Edit(path, content)
	})
	return err
}

// Delete runs the delete flow for path. Non-forced deletes consult confirm.
func (s *Session) Delete(ctx context.Context, path string, forced bool, confirm selection.Confirmer) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		prev := s.sel.State()
		if err := s.sel.Delete(path, forced, confirm); err != nil {
			return struct{}{}, err
		}
		s.logger.Info("session: note deleted", slog.String("path", path), slog.Bool("forced", forced))
		s.notify(Event{Kind: EventDeleted, Path: path})
		s.observe(prev)
		return struct{}{}, nil
	})
	return err
}

// Flush persists the active buffer now.
func (s *Session) Flush(ctx context.Context) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		path, _, _ := s.sel.Active()
		wrote, err := s.sel.Flush()
		if wrote {
			s.notify(Event{Kind: EventSaved, Path: path})
		}
		return struct{}{}, err
	})
	return err
}

// CreateNote creates a note with initial content in one step. Unlike
// ConfirmTitle a blank title is an apperr.ErrValidation error.
func (s *Session) CreateNote(ctx context.Context, title, content string) (models.Note, error) {
	return do(ctx, s, func() (models.Note, error) {
		prev := s.sel.State()
		defer s.observe(prev)

		if err := s.sel.StartComposing(); err != nil {
			return models.Note{}, err
		}
		n, ok, err := s.sel.ConfirmTitle(title)
		if err != nil {
			return models.Note{}, err
		}
		if !ok {
			return models.Note{}, fmt.Errorf("%w: title cannot be blank", apperr.ErrValidation)
		}
		s.notify(Event{Kind: EventCreated, Path: n.Path})
		if content == "" {
			return n, nil
		}
		if err := s.sel.Edit(n.Path, content); err != nil {
			return n, err
		}
		if _, err := s.sel.Flush(); err != nil {
			return n, err
		}
		return s.store.Load(n.Path)
	})
}

// WriteNote selects path, replaces its content and persists it at once.
func (s *Session) WriteNote(ctx context.Context, path, content string) (models.Note, error) {
	return do(ctx, s, func() (models.Note, error) {
		prev := s.sel.State()
		defer s.observe(prev)

		if _, err := s.sel.Select(path); err != nil {
			return models.Note{}, err
		}
		if err := s.sel.Edit(path, content); err != nil {
			return models.Note{}, err
		}
		wrote, err := s.sel.Flush()
		if err != nil {
			return models.Note{}, err
		}
		if wrote {
			s.notify(Event{Kind: EventSaved, Path: path})
		}
		return s.store.Load(path)
	})
}

// ExternalChange reconciles path after the file changed outside this
// process. If the changed note is active and its buffer held no unsaved
// edits, the buffer adopts the new content.
func (s *Session) ExternalChange(ctx context.Context, path string) error {
	_, err := do(ctx, s, func() (struct{}, error) {
		s.reconcile(path)
		return struct{}{}, nil
	})
	return err
}

func (s *Session) reconcile(path string) {
	activePath, buf, active := s.sel.Active()
	isActive := active && activePath == path
	clean := false
	if isActive {
		if n, err := s.store.Load(path); err == nil {
			clean = n.Content == buf
		}
	}

	changed, err := s.store.Reconcile(path)
	if err != nil {
		s.logger.Warn("session: reconcile failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	if !changed {
		return
	}

	n, loadErr := s.store.Load(path)
	if errors.Is(loadErr, apperr.ErrNotFound) {
		s.logger.Info("session: note removed externally", slog.String("path", path))
		s.notify(Event{Kind: EventDeleted, Path: path})
		if isActive {
			prev := s.sel.State()
			s.sel.Forget(path)
			s.observe(prev)
		}
		return
	}

	s.notify(Event{Kind: EventChanged, Path: path})
	if isActive && clean && loadErr == nil {
		s.sel.Adopt(n)
		s.notify(Event{Kind: EventReloaded, Path: path})
	}
}
