// Package app wires the screens of the terminal app into a Bubble Tea
// program.
package app

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/router"
	"github.com/abhisek/techtree/internal/screen"
	"github.com/abhisek/techtree/internal/screens/chat"
	"github.com/abhisek/techtree/internal/screens/lessons"
	"github.com/abhisek/techtree/internal/screens/welcome"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/ui/layout"
)

// Options configures Run.
type Options struct {
	// Learner is the learner ID. When empty the app asks for one.
	Learner string

	// LessonID opens that lesson directly instead of the lesson picker.
	LessonID string

	Lessons  store.LessonRepo
	Progress store.ProgressRepo
	Sessions chat.Sessions
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// newAppModel picks the first screen for opts.
func newAppModel(ctx context.Context, opts Options) (AppModel, error) {
	openLesson := func(l store.Lesson) screen.Screen {
		return chat.New(opts.Sessions, opts.Learner, l)
	}
	picker := func(learner string) screen.Screen {
		return lessons.New(opts.Lessons, opts.Progress, learner, func(l store.Lesson) screen.Screen {
			return chat.New(opts.Sessions, learner, l)
		})
	}

	var first screen.Screen
	switch {
	case opts.Learner == "":
		first = welcome.New(picker)
	case opts.LessonID != "":
		l, err := opts.Lessons.Get(ctx, opts.LessonID)
		if errors.Is(err, store.ErrNotFound) {
			return AppModel{}, fmt.Errorf("lesson %q not found", opts.LessonID)
		}
		if err != nil {
			return AppModel{}, err
		}
		first = openLesson(*l)
	default:
		first = picker(opts.Learner)
	}
	return AppModel{router: router.New(first)}, nil
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		case "q":
			if ic, ok := m.router.Active().(screen.InputCapturer); !ok || !ic.CapturesInput() {
				return m, tea.Quit
			}
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.frame().Render(m.width, m.height, m.router.View))
	return v
}

// frame builds the header and footer for the active screen.
func (m AppModel) frame() layout.Frame {
	active := m.router.Active()
	if active == nil {
		return layout.Frame{}
	}

	f := layout.Frame{Title: m.router.Trail()}
	if sp, ok := active.(screen.StatusProvider); ok {
		f.Status = sp.Status()
	}
	switch kp, ok := active.(screen.KeyHintProvider); {
	case ok:
		f.Hints = kp.KeyHints()
	case m.router.Depth() > 1:
		f.Hints = []layout.KeyHint{{Key: "Esc", Description: "Back"}, {Key: "Ctrl+C", Description: "Quit"}}
	default:
		f.Hints = []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	}
	return f
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	model, err := newAppModel(ctx, opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}
