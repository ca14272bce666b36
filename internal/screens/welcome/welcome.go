// Package welcome is the sign-in screen shown when no learner was given on
// the command line.
package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/router"
	"github.com/abhisek/techtree/internal/screen"
	"github.com/abhisek/techtree/internal/ui/components"
	"github.com/abhisek/techtree/internal/ui/layout"
	"github.com/abhisek/techtree/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	taglineAt    = 500 * time.Millisecond
	totalDur     = 1500 * time.Millisecond
)

const tagline = "Learn by doing: ask, practice, get graded."

type tickMsg time.Time

// WelcomeScreen asks for a learner name and then replaces itself with the
// screen built by next.
type WelcomeScreen struct {
	next         func(learner string) screen.Screen
	input        components.TextInput
	elapsed      time.Duration
	hint         string
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.InputCapturer = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen.
func New(next func(learner string) screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{
		next:  next,
		input: components.NewTextInput("your name", 64),
	}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) CapturesInput() bool { return true }

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Enter", Description: "Continue"}, {Key: "Ctrl+C", Description: "Quit"}}
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tea.Batch(w.input.Init(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if w.elapsed >= totalDur {
			return w, nil
		}
		w.elapsed += tickInterval
		return w, tick()

	case tea.KeyMsg:
		if msg.String() == "enter" {
			return w, w.transition()
		}
	}

	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return w, cmd
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	name := strings.TrimSpace(w.input.Value())
	if name == "" {
		w.hint = "Type a name so your progress can be saved."
		return nil
	}
	w.transitioned = true
	next := w.next(name)
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	sections := []string{RenderBanner(width), ""}

	if w.elapsed >= taglineAt {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.Text).
			Bold(true).
			Render(tagline), "")
	}

	w.input.SetWidth(min(width-10, 40))
	sections = append(sections,
		theme.Subtitle.Render("Who is learning today?"),
		theme.TaskCard.Render(w.input.View()),
	)
	if w.hint != "" {
		sections = append(sections, theme.ErrorText.Render(w.hint))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
