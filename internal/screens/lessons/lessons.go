// Package lessons is the lesson picker, the first screen of the app.
package lessons

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/router"
	"github.com/abhisek/techtree/internal/screen"
	"github.com/abhisek/techtree/internal/screens/progress"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/ui/components"
	"github.com/abhisek/techtree/internal/ui/layout"
	"github.com/abhisek/techtree/internal/ui/theme"
)

// OpenFunc returns the session screen for a lesson.
type OpenFunc func(lesson store.Lesson) screen.Screen

type lessonsLoadedMsg struct {
	Lessons  []store.Lesson
	Progress map[string]store.Progress
	Err      error
}

// LessonsScreen lists lessons with the learner's status on each.
type LessonsScreen struct {
	lessons  store.LessonRepo
	progress store.ProgressRepo
	learner  string
	open     OpenFunc

	items    []store.Lesson
	menu     components.Menu
	answered int
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*LessonsScreen)(nil)
var _ screen.KeyHintProvider = (*LessonsScreen)(nil)
var _ screen.StatusProvider = (*LessonsScreen)(nil)

// New creates a LessonsScreen. open builds the screen pushed when a lesson
// is selected.
func New(lessons store.LessonRepo, progressRepo store.ProgressRepo, learner string, open OpenFunc) *LessonsScreen {
	return &LessonsScreen{
		lessons:  lessons,
		progress: progressRepo,
		learner:  learner,
		open:     open,
	}
}

func (s *LessonsScreen) Init() tea.Cmd {
	return s.load()
}

func (s *LessonsScreen) load() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		lessons, err := s.lessons.List(ctx)
		if err != nil {
			return lessonsLoadedMsg{Err: err}
		}
		records, err := s.progress.List(ctx, s.learner)
		if err != nil {
			return lessonsLoadedMsg{Err: err}
		}
		byLesson := make(map[string]store.Progress, len(records))
		for _, p := range records {
			byLesson[p.LessonID] = p
		}
		return lessonsLoadedMsg{Lessons: lessons, Progress: byLesson}
	}
}

func (s *LessonsScreen) Title() string {
	return "Lessons"
}

func (s *LessonsScreen) Status() string {
	return fmt.Sprintf("%s  %d answered", s.learner, s.answered)
}

func (s *LessonsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Start"},
		{Key: "p", Description: "Progress"},
		{Key: "q", Description: "Quit"},
	}
}

func (s *LessonsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case lessonsLoadedMsg:
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.errMsg = ""
		s.setLessons(msg.Lessons, msg.Progress)
		return s, nil

	case router.ResumedMsg:
		// Scores may have changed in the session that was just closed.
		return s, s.load()

	case tea.KeyMsg:
		if msg.String() == "p" {
			return s, s.showProgress()
		}
	}

	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *LessonsScreen) setLessons(lessons []store.Lesson, records map[string]store.Progress) {
	selected := s.menu.Selected
	s.items = lessons
	s.answered = 0

	items := make([]components.MenuItem, len(lessons))
	for i, l := range lessons {
		p, started := records[l.ID]
		s.answered += p.Answered
		items[i] = components.MenuItem{
			Label:       l.Title,
			Description: describe(l, p, started),
			Action: func() tea.Cmd {
				return func() tea.Msg { return router.PushScreenMsg{Screen: s.open(l)} }
			},
		}
	}
	s.menu = components.NewMenu(items)
	s.menu.Select(selected)
}

func (s *LessonsScreen) showProgress() tea.Cmd {
	titles := make(map[string]string, len(s.items))
	for _, l := range s.items {
		titles[l.ID] = l.Title
	}
	return func() tea.Msg {
		return router.PushScreenMsg{Screen: progress.New(s.progress, s.learner, titles)}
	}
}

func describe(l store.Lesson, p store.Progress, started bool) string {
	var parts []string
	if l.ModuleTitle != "" {
		parts = append(parts, l.ModuleTitle)
	}
	switch {
	case !started:
		parts = append(parts, "not started")
	case p.Answered == 0:
		parts = append(parts, p.Status)
	default:
		parts = append(parts, fmt.Sprintf("%s, %d answered, avg %d%%", p.Status, p.Answered, int(p.AverageScore()*100)))
	}
	return strings.Join(parts, " · ")
}

func (s *LessonsScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading lessons...")
	}
	if len(s.items) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No lessons yet. Import some with: techtree lesson import <file.yaml>")
	}

	title := theme.Title.Render("Pick a lesson")
	menuWidth := min(width-4, 80)
	menu := lipgloss.NewStyle().Width(menuWidth).Render(s.menu.View(height - 4))

	return "\n" + lipgloss.PlaceHorizontal(width, lipgloss.Center, title) + "\n\n" +
		lipgloss.PlaceHorizontal(width, lipgloss.Center, menu)
}
