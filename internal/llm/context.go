package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	sessionKey contextKey = "llm_session"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// Session identifies the learner and lesson a call is made for.
type Session struct {
	LearnerID string
	LessonID  string
}

// WithSession attaches the (learner, lesson) pair to the context so logged
// events can be traced back to a conversation.
func WithSession(ctx context.Context, learnerID, lessonID string) context.Context {
	return context.WithValue(ctx, sessionKey, Session{LearnerID: learnerID, LessonID: lessonID})
}

// SessionFrom extracts the session attached with WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
