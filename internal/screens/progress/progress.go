// Package progress shows a learner's scores across lessons.
package progress

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/router"
	"github.com/abhisek/techtree/internal/screen"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/ui/components"
	"github.com/abhisek/techtree/internal/ui/layout"
	"github.com/abhisek/techtree/internal/ui/theme"
)

// recentResponses is how many answers an expanded row lists.
const recentResponses = 5

type progressLoadedMsg struct {
	Records []store.Progress
	Err     error
}

type responsesLoadedMsg struct {
	Index     int
	Responses []store.Response
	Err       error
}

// ProgressScreen lists progress records with their average score. Enter
// expands a row with its latest answers.
type ProgressScreen struct {
	repo    store.ProgressRepo
	learner string
	titles  map[string]string // lesson ID -> title

	records   []store.Progress
	responses map[int][]store.Response
	expanded  map[int]bool
	selected  int
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*ProgressScreen)(nil)
var _ screen.KeyHintProvider = (*ProgressScreen)(nil)

// New creates a ProgressScreen for learner. titles maps lesson IDs to
// display titles; unknown IDs are shown as is.
func New(repo store.ProgressRepo, learner string, titles map[string]string) *ProgressScreen {
	return &ProgressScreen{
		repo:      repo,
		learner:   learner,
		titles:    titles,
		responses: make(map[int][]store.Response),
		expanded:  make(map[int]bool),
	}
}

func (s *ProgressScreen) Init() tea.Cmd {
	return func() tea.Msg {
		records, err := s.repo.List(context.Background(), s.learner)
		return progressLoadedMsg{Records: records, Err: err}
	}
}

func (s *ProgressScreen) Title() string {
	return "Progress"
}

func (s *ProgressScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Answers"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ProgressScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case progressLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.records = msg.Records
		}
		s.loaded = true
		return s, nil

	case responsesLoadedMsg:
		if msg.Err == nil {
			s.responses[msg.Index] = msg.Responses
		}
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.records)-1 {
				s.selected++
			}
		case "enter":
			if len(s.records) == 0 {
				return s, nil
			}
			s.expanded[s.selected] = !s.expanded[s.selected]
			if _, ok := s.responses[s.selected]; s.expanded[s.selected] && !ok {
				return s, s.loadResponses(s.selected)
			}
		}
	}
	return s, nil
}

func (s *ProgressScreen) loadResponses(i int) tea.Cmd {
	p := s.records[i]
	return func() tea.Msg {
		resps, err := s.repo.Responses(context.Background(), p.LearnerID, p.LessonID)
		return responsesLoadedMsg{Index: i, Responses: resps, Err: err}
	}
}

func (s *ProgressScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading progress...")
	}
	if len(s.records) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No progress yet. Answer an exercise to get a score.")
	}

	rowWidth := min(width-4, 90)
	var b strings.Builder
	b.WriteString("\n")

	for i, p := range s.records {
		prefix := "  "
		style := theme.Unselected
		if i == s.selected {
			prefix = "▸ "
			style = theme.Selected
		}

		title := s.titles[p.LessonID]
		if title == "" {
			title = p.LessonID
		}
		line := fmt.Sprintf("%s%s  %s  %d answered", prefix, title, p.Status, p.Answered)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Width(rowWidth).Render(style.Render(line))))
		b.WriteString("\n")

		bar := components.ScoreBar("    avg", p.AverageScore(), rowWidth)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Width(rowWidth).Render(bar)))
		b.WriteString("\n")

		if s.expanded[i] {
			b.WriteString(s.renderResponses(i, width, rowWidth))
		}
	}

	return b.String()
}

func (s *ProgressScreen) renderResponses(i, width, rowWidth int) string {
	resps, ok := s.responses[i]
	dim := lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).Width(rowWidth)
	if !ok {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, dim.Render("    Loading answers...")) + "\n"
	}
	if len(resps) == 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, dim.Render("    No answers recorded")) + "\n"
	}

	var b strings.Builder
	start := max(len(resps)-recentResponses, 0)
	for _, r := range resps[start:] {
		score := "  -"
		if r.Score != nil {
			score = fmt.Sprintf("%3d%%", int(*r.Score*100))
		}
		line := fmt.Sprintf("    %s  %s %s: %s", score, r.TaskKind, r.TaskType, oneLine(r.Answer, 40))
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(scoreColor(r.Score)).Width(rowWidth).Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}

func scoreColor(score *float64) color.Color {
	switch {
	case score == nil:
		return theme.TextDim
	case *score >= 0.8:
		return theme.Success
	case *score >= 0.5:
		return theme.Accent
	default:
		return theme.Error
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
