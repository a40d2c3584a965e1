// Package tui is the terminal presenter: a note list beside a single
// editor pane, driving the session the same way the HTTP API does.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/selection"
	"github.com/starford/quicknote/internal/session"
)

// DefaultDebounce is how long the editor waits after the last keystroke
// before handing its buffer to the session.
const DefaultDebounce = 300 * time.Millisecond

// DefaultMaxWait bounds how long a dirty buffer may stay unsent while the
// user keeps typing. It matches the default autosave interval.
const DefaultMaxWait = time.Second

var errBlankTitle = errors.New("title cannot be blank")

// Notes is the session surface the TUI drives.
type Notes interface {
	List(ctx context.Context) ([]models.Summary, error)
	State(ctx context.Context) (selection.State, error)
	Compose(ctx context.Context) error
	ConfirmTitle(ctx context.Context, title string) (models.Note, bool, error)
	Select(ctx context.Context, path string) error
	Edit(ctx context.Context, path, content string) error
	Delete(ctx context.Context, path string, forced bool, confirm selection.Confirmer) error
	Flush(ctx context.Context) error
}

type viewMode int

const (
	modeBrowse viewMode = iota
	modeTitle
	modeConfirmDelete
)

type focusArea int

const (
	focusList focusArea = iota
	focusEditor
)

// Option configures a Model.
type Option func(*Model)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithMaxWait sets how long continuous typing may hold back an edit push.
func WithMaxWait(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.maxWait = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// WithLogger sets the logger used for failures the status line may not
// outlive, such as a failed save on quit.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		m.copy = write
	}
}

// Model is the bubbletea model.
type Model struct {
	ctx      context.Context
	notes    Notes
	copy     func(string) error
	debounce time.Duration
	maxWait  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	keys   keyMap
	help   help.Model
	editor textarea.Model
	title  textinput.Model

	list   []models.Summary
	cursor int
	mode   viewMode
	focus  focusArea

	// activePath is the note the editor buffer belongs to.
	activePath  string
	activeTitle string
	dirty       bool
	dirtySince  time.Time
	editSeq     int
	// pushing is set while an edit push is in flight; pushes never overlap
	// so the session buffer only moves forward.
	pushing    bool
	pushQueued bool

	deleteTarget *models.Summary
	status       string
	statusErr    bool
	width        int
	height       int
	quitting     bool
	saveFailed   bool
}

// New creates the model. Nothing is loaded until Init runs.
func New(ctx context.Context, notes Notes, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Start typing..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	ti := textinput.New()
	ti.Placeholder = "Title of the new note"
	ti.CharLimit = 200
	ti.Prompt = "Title: "

	m := Model{
		ctx:      ctx,
		notes:    notes,
		copy:     clipboard.WriteAll,
		debounce: DefaultDebounce,
		maxWait:  DefaultMaxWait,
		now:      time.Now,
		logger:   slog.Default(),
		keys:     keys,
		help:     help.New(),
		editor:   ta,
		title:    ti,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init loads the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.run(false, nil)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case refreshMsg:
		return m.applyRefresh(msg)

	case eventMsg:
		switch msg.event.Kind {
		case session.EventSaved:
			return m, nil
		case session.EventReloaded:
			return m, m.snapshot(true)
		}
		return m, m.snapshot(false)

	case pushEditMsg:
		if !m.dirty || m.activePath == "" {
			return m, nil
		}
		quiet := msg.seq == m.editSeq
		if !quiet && m.now().Sub(m.dirtySince) < m.maxWait {
			return m, nil
		}
		cmd := m.startPush()
		return m, cmd

	case editPushedMsg:
		m.pushing = false
		if msg.err != nil {
			m.status, m.statusErr = describe(msg.err), true
		}
		if m.pushQueued && m.dirty && m.activePath != "" {
			cmd := m.startPush()
			return m, cmd
		}
		m.pushQueued = false
		return m, nil

	case statusMsg:
		m.status, m.statusErr = msg.text, msg.isErr
		return m, nil

	case quitMsg:
		if msg.err != nil {
			m.logger.Error("tui: save on quit failed", slog.String("path", m.activePath), slog.String("error", msg.err.Error()))
			m.quitting = false
			m.saveFailed = true
			m.status, m.statusErr = "Save failed: "+msg.err.Error()+" (ctrl+c again quits without saving)", true
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			if m.saveFailed {
				return m, tea.Quit
			}
			m.quitting = true
			return m, m.quit()
		}
		switch m.mode {
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		case modeTitle:
			return m.updateTitle(msg)
		}
		return m.updateBrowse(msg)
	}

	if m.focus == focusEditor {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.New):
		cmd := m.runPushing(false, m.notes.Compose)
		return m, cmd

	case key.Matches(msg, m.keys.Focus):
		cmd := m.toggleFocus()
		return m, cmd

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyActive()
	}

	if m.focus == focusEditor {
		if key.Matches(msg, m.keys.Escape) {
			m.setFocus(focusList)
			return m, nil
		}
		return m.updateEditor(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if it, ok := m.current(); ok {
			path, notes := it.Path, m.notes
			cmd := m.runPushing(false, func(ctx context.Context) error {
				return notes.Select(ctx, path)
			})
			return m, cmd
		}
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.current(); ok {
			m.deleteTarget = &it
			m.mode = modeConfirmDelete
		}
	case key.Matches(msg, m.keys.Force):
		if it, ok := m.current(); ok {
			cmd := m.deleteCmd(it.Path, true)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.activePath == "" {
		return m, nil
	}
	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if m.editor.Value() == before {
		return m, cmd
	}
	if !m.dirty {
		m.dirtySince = m.now()
	}
	m.dirty = true
	m.editSeq++
	seq := m.editSeq
	return m, tea.Batch(cmd, tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return pushEditMsg{seq: seq}
	}))
}

func (m Model) updateTitle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		title, notes := m.title.Value(), m.notes
		return m, m.run(false, func(ctx context.Context) error {
			_, created, err := notes.ConfirmTitle(ctx, title)
			if err != nil {
				return err
			}
			if !created {
				return errBlankTitle
			}
			return nil
		})

	case key.Matches(msg, m.keys.Escape):
		// Leave composition by returning to the highlighted note.
		it, ok := m.current()
		if !ok {
			return m, nil
		}
		path, notes := it.Path, m.notes
		return m, m.run(false, func(ctx context.Context) error {
			return notes.Select(ctx, path)
		})
	}

	var cmd tea.Cmd
	m.title, cmd = m.title.Update(msg)
	return m, cmd
}

// updateConfirmDelete answers the y/N prompt. Anything but y is No.
func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.deleteTarget
	m.deleteTarget = nil
	m.mode = modeBrowse
	if target == nil {
		return m, nil
	}
	if key.Matches(msg, m.keys.Confirm) {
		cmd := m.deleteCmd(target.Path, false)
		return m, cmd
	}
	m.status, m.statusErr = "Delete cancelled", false
	return m, nil
}

func (m Model) applyRefresh(msg refreshMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status, m.statusErr = describe(msg.err), true
	}
	if msg.list == nil && msg.err != nil {
		return m, nil
	}
	m.list = msg.list

	var cmd tea.Cmd
	st := msg.state
	switch st.Mode {
	case selection.Editing:
		if st.Path != m.activePath || (msg.reload && !m.dirty) {
			m.activePath = st.Path
			m.activeTitle = st.Title
			m.editor.SetValue(st.Content)
			m.dirty = false
		}
		if m.mode == modeTitle {
			m.mode = modeBrowse
			m.title.Reset()
			m.title.Blur()
			cmd = m.setFocus(focusEditor)
		}
		m.cursor = m.indexOf(st.Path)
	case selection.ComposingNew:
		m.activePath, m.activeTitle = "", ""
		m.editor.SetValue("")
		m.dirty = false
		if m.mode != modeTitle {
			m.mode = modeTitle
			m.editor.Blur()
			cmd = m.title.Focus()
		}
	default:
		m.activePath, m.activeTitle = "", ""
	}
	m.clampCursor()
	return m, cmd
}

func (m Model) indexOf(path string) int {
	for i, it := range m.list {
		if it.Path == path {
			return i
		}
	}
	return m.cursor
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.list) {
		m.cursor = len(m.list) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) current() (models.Summary, bool) {
	if m.cursor < 0 || m.cursor >= len(m.list) {
		return models.Summary{}, false
	}
	return m.list[m.cursor], true
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusList {
		return m.setFocus(focusEditor)
	}
	return m.setFocus(focusList)
}

func (m *Model) setFocus(f focusArea) tea.Cmd {
	if f == focusEditor && m.activePath == "" {
		return nil
	}
	m.focus = f
	if f == focusEditor {
		return m.editor.Focus()
	}
	m.editor.Blur()
	return nil
}

func (m *Model) resize() {
	side := m.sidebarWidth()
	w := m.width - side - 6
	if w < 10 {
		w = 10
	}
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	m.editor.SetWidth(w)
	m.editor.SetHeight(h)
	m.title.Width = w - len(m.title.Prompt)
}

func (m Model) sidebarWidth() int {
	w := m.width / 3
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

// snapshot reads the list and selection without touching anything.
func (m Model) snapshot(reload bool) tea.Cmd {
	ctx, notes := m.ctx, m.notes
	return func() tea.Msg {
		return load(ctx, notes, reload, nil)
	}
}

// run performs op on the session and then reloads the snapshot.
func (m Model) run(reload bool, op func(context.Context) error) tea.Cmd {
	ctx, notes := m.ctx, m.notes
	return func() tea.Msg {
		var opErr error
		if op != nil {
			opErr = op(ctx)
		}
		return load(ctx, notes, reload, opErr)
	}
}

// runPushing is run preceded by handing any unsent edit to the session,
// so the outgoing note's latest text is what gets flushed on a switch.
func (m *Model) runPushing(reload bool, op func(context.Context) error) tea.Cmd {
	path, content, dirty := m.activePath, m.editor.Value(), m.dirty
	m.dirty = false
	notes := m.notes
	return m.run(reload, func(ctx context.Context) error {
		if dirty && path != "" {
			if err := notes.Edit(ctx, path, content); err != nil {
				return err
			}
		}
		return op(ctx)
	})
}

// startPush hands the editor buffer to the session, or queues it behind
// the push already in flight.
func (m *Model) startPush() tea.Cmd {
	if m.pushing {
		m.pushQueued = true
		return nil
	}
	m.pushing, m.pushQueued, m.dirty = true, false, false
	return m.pushEdit(m.activePath, m.editor.Value())
}

func (m Model) pushEdit(path, content string) tea.Cmd {
	ctx, notes := m.ctx, m.notes
	return func() tea.Msg {
		return editPushedMsg{err: notes.Edit(ctx, path, content)}
	}
}

func (m *Model) deleteCmd(path string, forced bool) tea.Cmd {
	notes := m.notes
	yes := selection.ConfirmFunc(func(string, string) bool { return true })
	return m.runPushing(false, func(ctx context.Context) error {
		return notes.Delete(ctx, path, forced, yes)
	})
}

func (m Model) copyActive() tea.Cmd {
	if m.activePath == "" {
		return nil
	}
	text, write := m.editor.Value(), m.copy
	return func() tea.Msg {
		if err := write(text); err != nil {
			return statusMsg{text: "Copy failed: " + err.Error(), isErr: true}
		}
		return statusMsg{text: "Copied to clipboard"}
	}
}

// quit hands the latest buffer to the session and flushes it before
// the program exits.
func (m Model) quit() tea.Cmd {
	ctx, notes := m.ctx, m.notes
	path, content, dirty := m.activePath, m.editor.Value(), m.dirty
	return func() tea.Msg {
		var editErr error
		if dirty && path != "" {
			editErr = notes.Edit(ctx, path, content)
		}
		return quitMsg{err: errors.Join(editErr, notes.Flush(ctx))}
	}
}

func load(ctx context.Context, notes Notes, reload bool, opErr error) tea.Msg {
	list, err := notes.List(ctx)
	if err != nil {
		return refreshMsg{err: errors.Join(opErr, err)}
	}
	st, err := notes.State(ctx)
	if err != nil {
		return refreshMsg{err: errors.Join(opErr, err)}
	}
	return refreshMsg{list: list, state: st, reload: reload, err: opErr}
}

func describe(err error) string {
	return fmt.Sprintf("Error: %v", err)
}
