package tui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/quicknote/internal/session"
)

// Bridge forwards session events into a running program. It is created
// before the session so it can be passed as its Notifier.
type Bridge struct {
	p atomic.Pointer[tea.Program]
}

// Notify is a session.Notifier. Delivery happens on its own goroutine so
// the session loop never waits on the UI.
func (b *Bridge) Notify(ev session.Event) {
	if p := b.p.Load(); p != nil {
		go p.Send(eventMsg{event: ev})
	}
}

// Run shows the TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, notes Notes, bridge *Bridge, opts ...Option) error {
	m := New(ctx, notes, opts...)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if bridge != nil {
		bridge.p.Store(p)
		defer bridge.p.Store(nil)
	}
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
