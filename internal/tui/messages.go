package tui

import (
	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/selection"
	"github.com/starford/quicknote/internal/session"
)

// refreshMsg carries a fresh snapshot of the list and selection.
// reload forces the editor to take the session buffer even when the
// active note did not change.
type refreshMsg struct {
	list   []models.Summary
	state  selection.State
	reload bool
	err    error
}

// eventMsg wraps a session event delivered by Bridge.
type eventMsg struct {
	event session.Event
}

// pushEditMsg fires when the edit debounce for seq expires.
type pushEditMsg struct {
	seq int
}

// editPushedMsg reports the outcome of handing the buffer to the session.
type editPushedMsg struct {
	err error
}

type statusMsg struct {
	text  string
	isErr bool
}

// quitMsg is sent once the last buffer was handed to the session and
// flushed. err holds whatever went wrong on the way.
type quitMsg struct {
	err error
}
