package tutor

import (
	"encoding/json"
	"strings"
)

// Mode is the interaction phase of a session.
type Mode string

const (
	ModeChatting          Mode = "chatting"
	ModeRequestExercise   Mode = "request_exercise"
	ModeRequestAssessment Mode = "request_assessment"
	ModeSubmitAnswer      Mode = "submit_answer"
	ModeAwaitingAnswer    Mode = "awaiting_answer"
)

// ParseMode returns the Mode named by s, or ModeChatting for unknown values.
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case ModeChatting, ModeRequestExercise, ModeRequestAssessment, ModeSubmitAnswer, ModeAwaitingAnswer:
		return m
	default:
		return ModeChatting
	}
}

// UnmarshalJSON decodes unknown modes as ModeChatting.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ParseMode(s)
	return nil
}

// ModeForIntent maps a classifier label onto a Mode by case-insensitive
// substring match. Labels containing "exercise" request an exercise;
// "assessment" or "quiz" request an assessment. Everything else maps to
// ModeChatting, and ok reports whether the label was recognized at all.
func ModeForIntent(label string) (mode Mode, ok bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "exercise"):
		return ModeRequestExercise, true
	case strings.Contains(l, "assessment"), strings.Contains(l, "quiz"):
		return ModeRequestAssessment, true
	case strings.Contains(l, "chat"), strings.Contains(l, "answer"):
		return ModeChatting, true
	default:
		return ModeChatting, false
	}
}
