// Package tutor implements the nodes of a lesson interaction: intent
// classification, routing, exercise and assessment generation, chat and
// answer evaluation.
//
// A node takes an immutable Input and returns an Update. Nodes never
// return errors; failures are recorded on the Update together with a
// message the learner can read. State.Apply is the only place the
// session state changes.
package tutor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/extract"
	"github.com/abhisek/techtree/internal/llm"
)

// Config holds tunables for the tutor nodes.
type Config struct {
	// HistoryWindow is how many history entries prompts include.
	HistoryWindow int `yaml:"history_window"`

	// MaxEmptyAnswers releases an active task after this many consecutive
	// empty submissions. Zero disables the cap.
	MaxEmptyAnswers int `yaml:"max_empty_answers"`

	// NoveltyWindow is how many previously generated items are listed in
	// generator prompts. Zero sends an empty list.
	NoveltyWindow int `yaml:"novelty_window"`

	ClassifyTemperature   float64 `yaml:"classify_temperature"`
	ChatTemperature       float64 `yaml:"chat_temperature"`
	ExerciseTemperature   float64 `yaml:"exercise_temperature"`
	AssessmentTemperature float64 `yaml:"assessment_temperature"`
	EvaluateTemperature   float64 `yaml:"evaluate_temperature"`

	ClassifyMaxTokens int `yaml:"classify_max_tokens"`
	ChatMaxTokens     int `yaml:"chat_max_tokens"`
	TaskMaxTokens     int `yaml:"task_max_tokens"`
	EvaluateMaxTokens int `yaml:"evaluate_max_tokens"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:         10,
		MaxEmptyAnswers:       3,
		NoveltyWindow:         0,
		ClassifyTemperature:   0.1,
		ChatTemperature:       0.7,
		ExerciseTemperature:   0.6,
		AssessmentTemperature: 0.4,
		EvaluateTemperature:   0.2,
		ClassifyMaxTokens:     256,
		ChatMaxTokens:         1024,
		TaskMaxTokens:         2048,
		EvaluateMaxTokens:     1024,
	}
}

// OutlineModule is one module of a lesson's syllabus outline.
type OutlineModule struct {
	Title   string
	Lessons []string
}

// Lesson is the read-only lesson context nodes work against.
type Lesson struct {
	ID             string
	Topic          string
	Title          string
	ModuleTitle    string
	KnowledgeLevel string
	Exposition     string
	Outline        []OutlineModule
}

// Input is what a node sees of the session. It is a copy; nodes may not
// reach back into the caller's state.
type Input struct {
	Lesson  Lesson
	History []Message
	Message string

	// Task is a copy of the active task, or nil.
	Task *Task

	EmptyAnswers     int
	PriorExercises   []GeneratedItem
	PriorAssessments []GeneratedItem
}

// TaskChange says what an Update does to the active task slots.
type TaskChange int

const (
	TaskKeep TaskChange = iota
	TaskClear
	TaskSet
)

// Update is the delta a node returns.
type Update struct {
	Node string
	Mode Mode

	Task    TaskChange
	NewTask *Task

	// EmptyAnswer counts one more empty submission against the task.
	EmptyAnswer bool

	AssistantMessage   string
	EvaluationFeedback string
	Score              *float64
	Err                error

	Response  *Response
	Generated *GeneratedItem
}

// Node is one step of a turn.
type Node func(ctx context.Context, in Input) Update

// Tutor runs the nodes against a provider. A nil provider is allowed;
// every node then takes its configuration fallback.
type Tutor struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New creates a Tutor. The provider is expected to carry its own retry
// and timeout wrapping (see llm.NewProvider).
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Tutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}
	return &Tutor{provider: provider, cfg: cfg, logger: logger}
}

// HasProvider reports whether an LLM provider is configured.
func (t *Tutor) HasProvider() bool {
	return t.provider != nil
}

// complete sends one prompt and returns the reply text.
func (t *Tutor) complete(ctx context.Context, purpose, system, user string, temperature float64, maxTokens int) (string, error) {
	resp, err := t.callProvider(ctx, purpose, system, user, temperature, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (t *Tutor) callProvider(ctx context.Context, purpose, system, user string, temperature float64, maxTokens int) (*llm.Response, error) {
	if t.provider == nil {
		return nil, ErrNoProvider
	}
	ctx = llm.WithPurpose(ctx, purpose)
	return t.provider.Generate(ctx, llm.Request{
		System: system,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

// completeObject sends one prompt and returns the JSON object found in
// the reply, checked against schema.
func (t *Tutor) completeObject(ctx context.Context, purpose string, schema *llm.Schema, system, user string, temperature float64, maxTokens int) (map[string]any, error) {
	resp, err := t.callProvider(ctx, purpose, system, user, temperature, maxTokens)
	if err != nil {
		return nil, err
	}
	obj := extract.Object(resp.Text())
	if obj == nil {
		if resp.Truncated() {
			return nil, fmt.Errorf("%w: %s reply: %w", ErrInvalidPayload, purpose,
				&llm.ErrMaxTokensExceeded{Limit: maxTokens, Content: resp.Text()})
		}
		return nil, fmt.Errorf("%w: no JSON object in %s reply", ErrInvalidPayload, purpose)
	}
	if err := llm.ValidateObject(schema, obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return obj, nil
}

// fail logs a node failure and wraps it.
func (t *Tutor) fail(node string, err error) *NodeError {
	ne := newNodeError(node, err)
	t.logger.Warn("node failed",
		zap.String("node", node),
		zap.String("kind", string(ne.Kind)),
		zap.Error(err),
	)
	return ne
}
