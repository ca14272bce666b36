package tutor

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Classification is the classifier's decision for a turn.
type Classification struct {
	Mode      Mode
	Intent    string
	Reasoning string
	Err       error
}

// Classify decides which node handles the turn. An active task always
// means the message is an answer; the provider is not consulted.
func (t *Tutor) Classify(ctx context.Context, in Input) Classification {
	if in.Task != nil {
		return Classification{Mode: ModeSubmitAnswer}
	}
	if strings.TrimSpace(in.Message) == "" {
		return Classification{Mode: ModeChatting, Err: t.fail("classify", ErrNoMessage)}
	}

	user, err := t.buildClassifyMessage(in)
	if err != nil {
		return Classification{Mode: ModeChatting, Err: t.fail("classify", err)}
	}
	obj, err := t.completeObject(ctx, "intent", IntentSchema, classifySystemPrompt, user,
		t.cfg.ClassifyTemperature, t.cfg.ClassifyMaxTokens)
	if err != nil {
		return Classification{Mode: ModeChatting, Err: t.fail("classify", err)}
	}

	label, _ := obj["intent"].(string)
	reasoning, _ := obj["reasoning"].(string)
	mode, ok := ModeForIntent(label)
	if !ok {
		t.logger.Warn("unrecognized intent label", zap.String("intent", label))
	}
	t.logger.Debug("classified turn", zap.String("intent", label), zap.String("mode", string(mode)))
	return Classification{Mode: mode, Intent: label, Reasoning: reasoning}
}
