package tutor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/llm"
)

type taskNode struct {
	node        string
	purpose     string
	kind        Kind
	schema      *llm.Schema
	system      string
	noContent   string
	noProvider  string
	failed      string
	temperature func(Config) float64
}

var exerciseNode = taskNode{
	node:        "exercise",
	purpose:     "exercise",
	kind:        KindExercise,
	schema:      ExerciseSchema,
	system:      exerciseSystemPrompt,
	noContent:   "Sorry, I couldn't generate an exercise because the lesson content is missing.",
	noProvider:  "Sorry, I cannot generate an exercise right now (LLM unavailable).",
	failed:      "Sorry, I couldn't generate an exercise at this time.",
	temperature: func(c Config) float64 { return c.ExerciseTemperature },
}

var assessmentNode = taskNode{
	node:        "assessment",
	purpose:     "assessment",
	kind:        KindAssessment,
	schema:      AssessmentSchema,
	system:      assessmentSystemPrompt,
	noContent:   "Sorry, I couldn't generate an assessment because the lesson content is missing.",
	noProvider:  "Sorry, I cannot generate an assessment right now (LLM unavailable).",
	failed:      "Sorry, I couldn't generate an assessment question at this time.",
	temperature: func(c Config) float64 { return c.AssessmentTemperature },
}

// GenerateExercise issues a new practice exercise.
func (t *Tutor) GenerateExercise(ctx context.Context, in Input) Update {
	return t.generate(ctx, in, exerciseNode)
}

// GenerateAssessment issues a new assessment question.
func (t *Tutor) GenerateAssessment(ctx context.Context, in Input) Update {
	return t.generate(ctx, in, assessmentNode)
}

func (t *Tutor) generate(ctx context.Context, in Input, n taskNode) Update {
	// Every outcome leaves at most the new task active.
	u := Update{Node: n.node, Mode: ModeChatting, Task: TaskClear}

	if strings.TrimSpace(in.Lesson.Exposition) == "" {
		u.AssistantMessage = n.noContent
		u.Err = t.fail(n.node, ErrNoExposition)
		return u
	}
	if t.provider == nil {
		u.AssistantMessage = n.noProvider
		u.Err = t.fail(n.node, ErrNoProvider)
		return u
	}

	task, err := t.requestTask(ctx, in, n)
	if err != nil {
		u.AssistantMessage = n.failed
		u.Err = t.fail(n.node, err)
		return u
	}

	t.logger.Info("generated task",
		zap.String("node", n.node),
		zap.String("task", task.ID),
		zap.String("type", task.Type),
	)
	return Update{
		Node:             n.node,
		Mode:             ModeAwaitingAnswer,
		Task:             TaskSet,
		NewTask:          task,
		AssistantMessage: RenderConfirmation(task),
		Generated:        &GeneratedItem{ID: task.ID, Type: task.Type, Summary: task.Summary()},
	}
}

func (t *Tutor) requestTask(ctx context.Context, in Input, n taskNode) (*Task, error) {
	user, err := t.buildTaskMessage(in, n.kind)
	if err != nil {
		return nil, err
	}
	obj, err := t.completeObject(ctx, n.purpose, n.schema, n.system, user,
		n.temperature(t.cfg), t.cfg.TaskMaxTokens)
	if err != nil {
		return nil, err
	}
	return TaskFromObject(n.kind, obj)
}
