// Package screen defines the contract between the router and the
// screens of the terminal app.
package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/ui/layout"
)

// Screen is one full-window view of the terminal app.
type Screen interface {
	Init() tea.Cmd

	// Update handles a message and returns the screen to keep on the stack.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the body between header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider is implemented by screens with their own footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is implemented by screens that show a status on the
// right of the header.
type StatusProvider interface {
	Status() string
}

// InputCapturer is implemented by screens that consume printable keys,
// so global shortcuts like "q" must not fire while they are active.
type InputCapturer interface {
	CapturesInput() bool
}
