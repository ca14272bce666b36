package interaction

import (
	"errors"

	"github.com/abhisek/techtree/internal/tutor"
)

var (
	// ErrLessonNotFound is returned for turns against an unknown lesson.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrInvalidTurn is returned when a turn lacks a learner or lesson.
	ErrInvalidTurn = errors.New("turn needs a learner and a lesson")
)

// Submission says what the learner meant to send.
type Submission string

const (
	SubmitChat       Submission = "chat"
	SubmitAnswer     Submission = "answer"
	SubmitAssessment Submission = "assessment"
)

// Turn is one incoming learner message.
type Turn struct {
	LearnerID  string
	LessonID   string
	Message    string
	Submission Submission
}

// Reply is what the learner sees after a turn.
type Reply struct {
	Message     string      `json:"message"`
	MessageType string      `json:"message_type"`
	Mode        tutor.Mode  `json:"mode"`
	ActiveTask  *tutor.Task `json:"active_task,omitempty"`
	Score       *float64    `json:"score,omitempty"`
	Error       string      `json:"error,omitempty"`
}

const (
	msgDispatchFailed = "Sorry, something went wrong while processing your message."
	msgNoReply        = "Sorry, I couldn't generate a response."
)
