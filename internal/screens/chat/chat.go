// Package chat is the conversation screen of a tutoring session.
package chat

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/screen"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
	"github.com/abhisek/techtree/internal/ui/components"
	"github.com/abhisek/techtree/internal/ui/layout"
)

// historyLimit bounds the transcript loaded when the screen opens.
const historyLimit = 200

// Sessions runs turns and reads session data. *interaction.Service
// implements it.
type Sessions interface {
	HandleTurn(ctx context.Context, turn interaction.Turn) (*interaction.Reply, error)
	State(ctx context.Context, learnerID, lessonID string) (*tutor.State, error)
	History(ctx context.Context, learnerID, lessonID string, limit int) ([]store.HistoryEntry, error)
}

type entry struct {
	role    string
	content string
	msgType string
	isError bool
}

// ChatScreen implements screen.Screen for one learner on one lesson.
type ChatScreen struct {
	sessions Sessions
	learner  string
	lesson   store.Lesson

	entries []entry
	mode    tutor.Mode
	task    *tutor.Task
	score   *float64

	input   components.TextInput
	choices *components.ChoiceList
	typing  bool // free-text answer to a choice task

	loaded  bool
	pending bool
	spin    int
	scroll  int // lines scrolled up from the bottom
	errMsg  string
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)
var _ screen.StatusProvider = (*ChatScreen)(nil)
var _ screen.InputCapturer = (*ChatScreen)(nil)

// New creates a ChatScreen.
func New(sessions Sessions, learner string, lesson store.Lesson) *ChatScreen {
	return &ChatScreen{
		sessions: sessions,
		learner:  learner,
		lesson:   lesson,
		mode:     tutor.ModeChatting,
		input:    components.NewTextInput("Ask a question or request an exercise...", 2000),
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	return tea.Batch(s.load(), s.input.Init())
}

func (s *ChatScreen) Title() string {
	return s.lesson.Title
}

func (s *ChatScreen) CapturesInput() bool { return true }

func (s *ChatScreen) Status() string {
	status := modeLabel(s.mode)
	if s.score != nil {
		status += fmt.Sprintf("  last score %d%%", int(*s.score*100))
	}
	return status
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	if s.pending {
		return []layout.KeyHint{{Key: "PgUp/PgDn", Description: "Scroll"}, {Key: "Esc", Description: "Back"}}
	}
	if s.choices != nil && !s.typing {
		return []layout.KeyHint{
			{Key: "↑↓/1-9", Description: "Choose"},
			{Key: "Enter", Description: "Answer"},
			{Key: "Tab", Description: "Type instead"},
			{Key: "Esc", Description: "Back"},
		}
	}
	hints := []layout.KeyHint{{Key: "Enter", Description: "Send"}, {Key: "PgUp/PgDn", Description: "Scroll"}}
	if s.choices != nil {
		hints = append(hints, layout.KeyHint{Key: "Tab", Description: "Options"})
	}
	return append(hints, layout.KeyHint{Key: "Esc", Description: "Back"})
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		return s.handleLoaded(msg)
	case replyMsg:
		return s.handleReply(msg)
	case spinnerTickMsg:
		if !s.pending {
			return s, nil
		}
		s.spin++
		return s, spinnerTick()
	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) load() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		entries, err := s.sessions.History(ctx, s.learner, s.lesson.ID, historyLimit)
		if err != nil {
			return loadedMsg{Err: err}
		}
		state, err := s.sessions.State(ctx, s.learner, s.lesson.ID)
		return loadedMsg{Entries: entries, State: state, Err: err}
	}
}

func (s *ChatScreen) handleLoaded(msg loadedMsg) (screen.Screen, tea.Cmd) {
	s.loaded = true
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}
	s.entries = s.entries[:0]
	for _, e := range msg.Entries {
		s.entries = append(s.entries, entry{role: e.Role, content: e.Content, msgType: e.MessageType})
	}
	if msg.State != nil {
		s.setTask(msg.State.Mode, msg.State.ActiveTask())
	}
	return s, nil
}

func (s *ChatScreen) handleReply(msg replyMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	s.scroll = 0
	if msg.Err != nil {
		s.entries = append(s.entries, entry{role: tutor.RoleAssistant, content: msg.Err.Error(), isError: true})
		return s, nil
	}

	r := msg.Reply
	s.entries = append(s.entries, entry{role: tutor.RoleAssistant, content: r.Message, msgType: r.MessageType})
	if r.Score != nil {
		v := *r.Score
		s.score = &v
	}
	s.setTask(r.Mode, r.ActiveTask)
	return s, nil
}

// setTask updates the mode and the answer widgets for the active task.
func (s *ChatScreen) setTask(mode tutor.Mode, task *tutor.Task) {
	s.mode = mode
	s.task = task
	s.choices = nil
	s.typing = false

	placeholder := "Ask a question or request an exercise..."
	if task != nil {
		placeholder = "Type your answer..."
		if opts := task.Options(); len(opts) > 0 {
			list := components.NewChoiceList(toChoices(opts))
			s.choices = &list
		}
	}
	s.input.Model.Placeholder = placeholder
}

func (s *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.errMsg != "" {
		return s, nil
	}

	switch key {
	case "pgup":
		s.scroll += 5
		return s, nil
	case "pgdown":
		s.scroll = max(s.scroll-5, 0)
		return s, nil
	}

	if s.pending || !s.loaded {
		return s, nil
	}

	if key == "tab" && s.choices != nil {
		s.typing = !s.typing
		return s, nil
	}

	if s.choices != nil && !s.typing {
		list, chosen := s.choices.Update(msg)
		s.choices = &list
		if chosen != nil {
			return s.send(chosen.ID)
		}
		return s, nil
	}

	if key == "enter" {
		text := s.input.Take()
		// An empty submission is an answer too while a task is open.
		if text == "" && s.task == nil {
			return s, nil
		}
		return s.send(text)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// send records the learner message and runs the turn in the background.
func (s *ChatScreen) send(text string) (screen.Screen, tea.Cmd) {
	turn := interaction.Turn{
		LearnerID:  s.learner,
		LessonID:   s.lesson.ID,
		Message:    text,
		Submission: s.submission(),
	}
	if text != "" {
		s.entries = append(s.entries, entry{role: tutor.RoleUser, content: text})
	}
	s.pending = true
	s.scroll = 0

	return s, tea.Batch(func() tea.Msg {
		reply, err := s.sessions.HandleTurn(context.Background(), turn)
		return replyMsg{Reply: reply, Err: err}
	}, spinnerTick())
}

func (s *ChatScreen) submission() interaction.Submission {
	switch {
	case s.task == nil:
		return interaction.SubmitChat
	case s.task.Kind == tutor.KindAssessment:
		return interaction.SubmitAssessment
	default:
		return interaction.SubmitAnswer
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

func toChoices(opts []tutor.Option) []components.Choice {
	out := make([]components.Choice, len(opts))
	for i, o := range opts {
		out[i] = components.Choice{ID: o.ID, Text: o.Text}
	}
	return out
}

func modeLabel(m tutor.Mode) string {
	switch m {
	case tutor.ModeAwaitingAnswer:
		return "awaiting answer"
	case tutor.ModeRequestExercise, tutor.ModeRequestAssessment:
		return "preparing task"
	default:
		return "chatting"
	}
}
