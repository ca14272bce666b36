package tutor

import (
	"context"

	"go.uber.org/zap"
)

// Route returns the node for mode. Unknown modes chat.
func (t *Tutor) Route(mode Mode) Node {
	switch mode {
	case ModeRequestExercise:
		return t.GenerateExercise
	case ModeRequestAssessment:
		return t.GenerateAssessment
	case ModeSubmitAnswer:
		return t.Evaluate
	default:
		return t.Chat
	}
}

// Run classifies the turn, runs exactly one node and returns its update.
// A classifier error takes precedence over the node's own error.
func (t *Tutor) Run(ctx context.Context, in Input) Update {
	c := t.Classify(ctx, in)
	u := t.Route(c.Mode)(ctx, in)
	if c.Err != nil {
		if u.Err != nil {
			t.logger.Debug("dropping later node error", zap.String("node", u.Node), zap.Error(u.Err))
		}
		u.Err = c.Err
	}
	return u
}
