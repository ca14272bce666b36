package tutor

import (
	"context"
	"fmt"
	"strings"
)

const (
	msgMissedMessage  = "It seems I missed your last message. Could you please repeat it?"
	msgChatNoProvider = "Sorry, I cannot respond right now (LLM unavailable)."
	msgChatFailed     = "Sorry, I encountered an error while generating a response."
)

// Chat answers the learner's latest message in the context of the lesson.
func (t *Tutor) Chat(ctx context.Context, in Input) Update {
	u := Update{Node: "chat", Mode: ModeChatting}

	n := len(in.History)
	if n == 0 || in.History[n-1].Role != RoleUser {
		u.AssistantMessage = msgMissedMessage
		return u
	}
	if t.provider == nil {
		u.AssistantMessage = msgChatNoProvider
		u.Err = t.fail(u.Node, ErrNoProvider)
		return u
	}

	user, err := t.buildChatMessage(in, in.History[n-1].Content)
	if err == nil {
		var text string
		text, err = t.complete(ctx, "chat", chatSystemPrompt, user, t.cfg.ChatTemperature, t.cfg.ChatMaxTokens)
		if text = strings.TrimSpace(text); err == nil && text == "" {
			err = fmt.Errorf("%w: empty chat reply", ErrInvalidPayload)
		}
		if err == nil {
			u.AssistantMessage = text
			return u
		}
	}
	u.AssistantMessage = msgChatFailed
	u.Err = t.fail(u.Node, err)
	return u
}
