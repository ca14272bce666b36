package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match

	LearnerID string // exact learner match
}

// OutlineModule is one module of a syllabus outline.
type OutlineModule struct {
	Title   string   `json:"title" yaml:"title"`
	Lessons []string `json:"lessons" yaml:"lessons"`
}

// Lesson is the read-only lesson context a tutoring session runs against.
type Lesson struct {
	ID             string          `json:"id" yaml:"id"`
	Topic          string          `json:"topic" yaml:"topic"`
	Title          string          `json:"title" yaml:"title"`
	ModuleTitle    string          `json:"module_title" yaml:"module_title"`
	KnowledgeLevel string          `json:"knowledge_level" yaml:"knowledge_level"`
	Exposition     string          `json:"exposition" yaml:"exposition"`
	Outline        []OutlineModule `json:"outline,omitempty" yaml:"outline,omitempty"`
	CreatedAt      time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time       `json:"updated_at" yaml:"-"`
}

// LessonRepo stores lesson records.
type LessonRepo interface {
	// Upsert inserts the lesson or replaces the one with the same ID.
	Upsert(ctx context.Context, l *Lesson) error

	// Get returns the lesson with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Lesson, error)

	// List returns all lessons ordered by ID.
	List(ctx context.Context) ([]Lesson, error)
}

// Progress is the persisted per-(learner, lesson) record. State holds the
// serialized session state; the store does not interpret it.
type Progress struct {
	LearnerID  string
	LessonID   string
	State      json.RawMessage
	Status     string
	Answered   int
	ScoreTotal float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AverageScore returns the mean score over answered tasks.
func (p *Progress) AverageScore() float64 {
	if p.Answered == 0 {
		return 0
	}
	return p.ScoreTotal / float64(p.Answered)
}

// Response is one evaluated learner answer.
type Response struct {
	ID        int64
	LearnerID string
	LessonID  string
	TaskID    string
	TaskKind  string
	TaskType  string
	Answer    string
	Score     *float64
	Feedback  string
	CreatedAt time.Time
}

// ProgressRepo stores session state, learner responses and the progress
// summary derived from them.
type ProgressRepo interface {
	// Load returns the progress record, or nil if none exists.
	Load(ctx context.Context, learnerID, lessonID string) (*Progress, error)

	// Save inserts or replaces the progress record.
	Save(ctx context.Context, p *Progress) error

	// List returns progress records, all learners when learnerID is empty.
	List(ctx context.Context, learnerID string) ([]Progress, error)

	// RecordResponse appends an evaluated answer.
	RecordResponse(ctx context.Context, r *Response) error

	// Responses returns recorded answers oldest first.
	Responses(ctx context.Context, learnerID, lessonID string) ([]Response, error)

	// Reset drops progress, history and responses for one session.
	Reset(ctx context.Context, learnerID, lessonID string) error
}

// HistoryEntry is one conversation turn.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	Sequence    int64     `json:"sequence"`
	LearnerID   string    `json:"learner_id"`
	LessonID    string    `json:"lesson_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryRepo is the append-only conversation log.
type HistoryRepo interface {
	// Append stores e and fills in its ID, Sequence and CreatedAt.
	Append(ctx context.Context, e *HistoryEntry) error

	// Recent returns up to limit most recent entries, oldest first.
	// limit <= 0 returns the full log.
	Recent(ctx context.Context, learnerID, lessonID string, limit int) ([]HistoryEntry, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	LearnerID    string
	LessonID     string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a recorded LLM request.
type LLMEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// LLMEventWriter records LLM calls.
type LLMEventWriter interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// EventRepo provides append and query access to LLM events.
type EventRepo interface {
	LLMEventWriter

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns the event with id, or nil if none exists.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates calls and tokens per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates calls and tokens per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
