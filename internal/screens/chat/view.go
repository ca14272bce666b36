package chat

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/tutor"
	"github.com/abhisek/techtree/internal/ui/theme"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (s *ChatScreen) View(width, height int) string {
	if s.errMsg != "" {
		return renderError(width, s.errMsg)
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render("\n\n  Loading the session...")
	}

	bottom := s.renderBottom(width)
	transcriptHeight := max(height-lipgloss.Height(bottom)-1, 1)
	return s.renderTranscript(width, transcriptHeight) + "\n" + bottom
}

// renderTranscript renders the last height lines of the conversation,
// shifted up by the scroll offset.
func (s *ChatScreen) renderTranscript(width, height int) string {
	var lines []string
	if len(s.entries) == 0 {
		lines = append(lines, theme.Hint.Render("  Say hello, ask about the lesson, or ask for an exercise or a quiz."))
	}

	body := lipgloss.NewStyle().Width(max(width-4, 10)).PaddingLeft(2)
	for _, e := range s.entries {
		lines = append(lines, "", speaker(e))
		style := body.Inherit(theme.Body)
		switch {
		case e.isError:
			style = body.Inherit(theme.ErrorText)
		case isFeedback(e.msgType):
			style = body.Inherit(theme.Feedback)
		}
		lines = append(lines, strings.Split(style.Render(e.content), "\n")...)
	}

	end := len(lines)
	s.scroll = min(s.scroll, max(end-height, 0))
	end -= s.scroll
	start := max(end-height, 0)
	return strings.Join(lines[start:end], "\n")
}

func (s *ChatScreen) renderBottom(width int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-2, 1))))
	b.WriteString("\n")

	if s.task != nil {
		card := theme.TaskCard.Width(max(width-4, 10)).Render(
			theme.LearnerName.Render(taskLabel(s.task)) + "\n" + theme.Body.Render(s.task.Summary()))
		b.WriteString(card)
		b.WriteString("\n")
	}

	s.input.SetWidth(max(width-8, 10))
	switch {
	case s.pending:
		b.WriteString(theme.Hint.Render("  " + spinnerFrames[s.spin%len(spinnerFrames)] + " The tutor is thinking..."))
	case s.choices != nil && !s.typing:
		b.WriteString(s.choices.View())
	default:
		b.WriteString("  " + s.input.View())
	}
	return b.String()
}

func speaker(e entry) string {
	if e.role == tutor.RoleUser {
		return theme.LearnerName.Render("You")
	}
	return theme.TutorName.Render("Tutor")
}

func isFeedback(msgType string) bool {
	return msgType == tutor.MessageExerciseFeedback || msgType == tutor.MessageAssessmentFeedback
}

func taskLabel(t *tutor.Task) string {
	kind := "Exercise"
	if t.Kind == tutor.KindAssessment {
		kind = "Assessment"
	}
	return kind + " · " + t.Type
}

func renderError(width int, errMsg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Error).
		Render("\n\n\n  Error: " + errMsg + "\n\n  Press Esc to go back.")
}
