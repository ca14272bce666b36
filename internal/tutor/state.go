package tutor

import (
	"encoding/json"
	"time"
)

// Message roles in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message types recorded on history entries.
const (
	MessageChat               = "chat"
	MessageExerciseResponse   = "exercise_response"
	MessageAssessmentResponse = "assessment_response"
	MessageExercisePrompt     = "exercise_prompt"
	MessageAssessmentPrompt   = "assessment_prompt"
	MessageExerciseFeedback   = "exercise_feedback"
	MessageAssessmentFeedback = "assessment_feedback"
)

// maxResponses bounds the answer log kept inline in state. The full log
// lives in the store.
const maxResponses = 50

// Message is one entry of conversation history.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
}

// GeneratedItem records a task that was issued to the learner.
type GeneratedItem struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// Response is a learner answer and its evaluation.
type Response struct {
	TaskID   string    `json:"task_id"`
	Kind     Kind      `json:"kind"`
	Type     string    `json:"type"`
	Answer   string    `json:"answer"`
	Score    *float64  `json:"score,omitempty"`
	Feedback string    `json:"feedback,omitempty"`
	At       time.Time `json:"at"`
}

// State is the per-(learner, lesson) session record.
type State struct {
	Mode                 Mode            `json:"interaction_mode"`
	ActiveExercise       *Task           `json:"active_exercise,omitempty"`
	ActiveAssessment     *Task           `json:"active_assessment,omitempty"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	EmptyAnswers         int             `json:"empty_answers,omitempty"`
	GeneratedExercises   []GeneratedItem `json:"generated_exercises,omitempty"`
	GeneratedAssessments []GeneratedItem `json:"generated_assessments,omitempty"`
	Responses            []Response      `json:"user_responses,omitempty"`
	ScoreUpdate          *float64        `json:"score_update,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`

	// Per-turn values. Strip removes them before the state is persisted.
	LastUserMessage     string    `json:"last_user_message,omitempty"`
	HistoryContext      []Message `json:"history_context,omitempty"`
	NewAssistantMessage string    `json:"new_assistant_message,omitempty"`
	EvaluationFeedback  string    `json:"evaluation_feedback,omitempty"`
}

// NewState returns a fresh state in ModeChatting.
func NewState() *State {
	return &State{Mode: ModeChatting}
}

// UnmarshalJSON decodes a persisted state and repairs records that break
// the single active task rule. The exercise slot wins.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = State(p)
	if s.Mode == "" {
		s.Mode = ModeChatting
	}
	if s.ActiveExercise != nil && s.ActiveAssessment != nil {
		s.ActiveAssessment = nil
	}
	s.settleMode()
	return nil
}

// ActiveTask returns the pending task, or nil.
func (s *State) ActiveTask() *Task {
	if s.ActiveExercise != nil {
		return s.ActiveExercise
	}
	return s.ActiveAssessment
}

// SetActive makes t the only active task. A nil task clears both slots.
func (s *State) SetActive(t *Task) {
	s.ActiveExercise, s.ActiveAssessment = nil, nil
	s.EmptyAnswers = 0
	if t == nil {
		return
	}
	if t.Kind == KindAssessment {
		s.ActiveAssessment = t
	} else {
		s.ActiveExercise = t
	}
}

// BeginTurn clears last turn's outputs and records the new input.
func (s *State) BeginTurn(message string, history []Message) {
	s.LastUserMessage = message
	s.HistoryContext = history
	s.NewAssistantMessage = ""
	s.EvaluationFeedback = ""
	s.ErrorMessage = ""
	s.ScoreUpdate = nil
}

// Input builds the node input for the current turn.
func (s *State) Input(lesson Lesson) Input {
	in := Input{
		Lesson:           lesson,
		History:          append([]Message(nil), s.HistoryContext...),
		Message:          s.LastUserMessage,
		EmptyAnswers:     s.EmptyAnswers,
		PriorExercises:   append([]GeneratedItem(nil), s.GeneratedExercises...),
		PriorAssessments: append([]GeneratedItem(nil), s.GeneratedAssessments...),
	}
	if t := s.ActiveTask(); t != nil {
		cp := *t
		in.Task = &cp
	}
	return in
}

// Apply merges a node update into the state. The first error of a turn
// is kept; later ones are dropped.
func (s *State) Apply(u Update) {
	switch u.Task {
	case TaskClear:
		s.SetActive(nil)
	case TaskSet:
		s.SetActive(u.NewTask)
	}
	if u.Mode != "" {
		s.Mode = u.Mode
	}
	if u.EmptyAnswer {
		s.EmptyAnswers++
	}
	if u.AssistantMessage != "" {
		s.NewAssistantMessage = u.AssistantMessage
	}
	if u.EvaluationFeedback != "" {
		s.EvaluationFeedback = u.EvaluationFeedback
	}
	if u.Score != nil {
		v := *u.Score
		s.ScoreUpdate = &v
	}
	if u.Err != nil && s.ErrorMessage == "" {
		s.ErrorMessage = u.Err.Error()
	}
	if g := u.Generated; g != nil {
		if u.NewTask != nil && u.NewTask.Kind == KindAssessment {
			s.GeneratedAssessments = append(s.GeneratedAssessments, *g)
		} else {
			s.GeneratedExercises = append(s.GeneratedExercises, *g)
		}
	}
	if u.Response != nil {
		s.Responses = append(s.Responses, *u.Response)
		if n := len(s.Responses); n > maxResponses {
			s.Responses = s.Responses[n-maxResponses:]
		}
	}
	s.settleMode()
	s.UpdatedAt = time.Now()
}

// settleMode keeps the mode consistent with the task slots.
func (s *State) settleMode() {
	if s.ActiveTask() == nil && s.Mode == ModeAwaitingAnswer {
		s.Mode = ModeChatting
	}
}

// Strip returns a copy without the per-turn values.
func (s *State) Strip() *State {
	cp := *s
	cp.LastUserMessage = ""
	cp.HistoryContext = nil
	cp.NewAssistantMessage = ""
	cp.EvaluationFeedback = ""
	return &cp
}
