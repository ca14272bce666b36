package tutor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	msgNoActiveTask     = "Sorry, there wasn't an active question for me to evaluate."
	msgNoAnswer         = "Sorry, I couldn't find your answer to evaluate."
	msgEmptyAnswerCap   = "Let's move on from that question. Ask me for another one whenever you're ready."
	msgEvalNoProvider   = "Sorry, I cannot evaluate your answer right now (LLM unavailable)."
	msgEvaluationFailed = "Sorry, I had trouble processing the evaluation."
)

// Evaluation is a graded answer.
type Evaluation struct {
	Score       float64
	IsCorrect   *bool
	Feedback    string
	Explanation string
}

// Evaluate grades the learner's answer to the active task. Once there is
// both a task and a non-empty answer, the task is spent whatever the
// outcome of the provider call.
func (t *Tutor) Evaluate(ctx context.Context, in Input) Update {
	const node = "evaluate"

	if in.Task == nil {
		return Update{
			Node:             node,
			Mode:             ModeChatting,
			Task:             TaskClear,
			AssistantMessage: msgNoActiveTask,
			Err:              t.fail(node, ErrNoActiveTask),
		}
	}

	answer := strings.TrimSpace(in.Message)
	if answer == "" {
		return t.emptyAnswer(in)
	}

	task := in.Task
	u := Update{
		Node: node,
		Mode: ModeChatting,
		Task: TaskClear,
		Response: &Response{
			TaskID: task.ID,
			Kind:   task.Kind,
			Type:   task.Type,
			Answer: answer,
			At:     time.Now(),
		},
	}
	if t.provider == nil {
		u.AssistantMessage = msgEvalNoProvider
		u.Err = t.fail(node, ErrNoProvider)
		return u
	}

	eval, err := t.requestEvaluation(ctx, in, answer)
	if err != nil {
		u.AssistantMessage = msgEvaluationFailed
		u.Err = t.fail(node, err)
		return u
	}

	score := eval.Score
	u.Score = &score
	u.EvaluationFeedback = eval.Feedback
	u.AssistantMessage = eval.Feedback
	u.Response.Score = &score
	u.Response.Feedback = eval.Feedback
	t.logger.Info("evaluated answer",
		zap.String("task", task.ID),
		zap.Float64("score", score),
	)
	return u
}

// emptyAnswer keeps the task for another try until the cap is reached.
func (t *Tutor) emptyAnswer(in Input) Update {
	const node = "evaluate"

	count := in.EmptyAnswers + 1
	if limit := t.cfg.MaxEmptyAnswers; limit > 0 && count >= limit {
		return Update{
			Node:             node,
			Mode:             ModeChatting,
			Task:             TaskClear,
			AssistantMessage: msgEmptyAnswerCap,
			Err:              t.fail(node, fmt.Errorf("%w after %d empty submissions", ErrNoAnswer, count)),
		}
	}
	return Update{
		Node:             node,
		Mode:             ModeAwaitingAnswer,
		Task:             TaskKeep,
		EmptyAnswer:      true,
		AssistantMessage: msgNoAnswer,
		Err:              t.fail(node, ErrNoAnswer),
	}
}

func (t *Tutor) requestEvaluation(ctx context.Context, in Input, answer string) (*Evaluation, error) {
	user, err := buildEvaluateMessage(in, answer)
	if err != nil {
		return nil, err
	}
	obj, err := t.completeObject(ctx, "evaluation", EvaluationSchema, evaluateSystemPrompt, user,
		t.cfg.EvaluateTemperature, t.cfg.EvaluateMaxTokens)
	if err != nil {
		return nil, err
	}
	return evaluationFromObject(obj)
}

func evaluationFromObject(obj map[string]any) (*Evaluation, error) {
	var score float64
	switch v := obj["score"].(type) {
	case float64:
		score = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: score %q is not a number", ErrInvalidPayload, v)
		}
		score = f
	default:
		return nil, fmt.Errorf("%w: missing score", ErrInvalidPayload)
	}
	if math.IsNaN(score) {
		return nil, fmt.Errorf("%w: score is NaN", ErrInvalidPayload)
	}
	score = min(max(score, 0), 1)

	feedback, _ := obj["feedback"].(string)
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: empty feedback", ErrInvalidPayload)
	}

	e := &Evaluation{Score: score, Feedback: feedback}
	if c, ok := obj["is_correct"].(bool); ok {
		e.IsCorrect = &c
	}
	e.Explanation, _ = obj["explanation"].(string)
	return e, nil
}
