package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/store"
)

// recorder logs each call and appends it to the LLM event log.
type recorder struct {
	inner  Provider
	events store.LLMEventWriter
	logger *zap.Logger
}

// WithLogging wraps p so every call is logged and, when events is not nil,
// recorded with its prompt, reply, token counts and latency.
func WithLogging(p Provider, events store.LLMEventWriter, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recorder{inner: p, events: events, logger: logger}
}

func (r *recorder) Name() string    { return providerName(r.inner) }
func (r *recorder) ModelID() string { return r.inner.ModelID() }

func (r *recorder) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := r.inner.Generate(ctx, req)
	ev := r.event(ctx, req, resp, err, time.Since(start))

	log := r.logger.With(
		zap.String("purpose", ev.Purpose),
		zap.String("model", ev.Model),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.Int("input_tokens", ev.InputTokens),
		zap.Int("output_tokens", ev.OutputTokens),
	)
	switch {
	case err != nil:
		log.Warn("llm request failed", zap.Error(err))
	case resp.Truncated():
		log.Warn("llm reply hit the token limit", zap.Int("max_tokens", req.MaxTokens))
	default:
		log.Debug("llm request")
	}

	// The event is kept even when the call was cancelled, and a failed
	// write never fails the call.
	if r.events != nil {
		if werr := r.events.AppendLLMRequest(context.WithoutCancel(ctx), ev); werr != nil {
			r.logger.Warn("record llm event", zap.Error(werr))
		}
	}
	return resp, err
}

func (r *recorder) event(ctx context.Context, req Request, resp *Response, err error, elapsed time.Duration) store.LLMRequestEventData {
	ev := store.LLMRequestEventData{
		Provider:    providerName(r.inner),
		Model:       r.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   elapsed.Milliseconds(),
		Success:     err == nil,
		RequestBody: transcript(req),
	}
	if s, ok := SessionFrom(ctx); ok {
		ev.LearnerID, ev.LessonID = s.LearnerID, s.LessonID
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
	}
	if resp != nil {
		ev.Model = resp.Model
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.ResponseBody = resp.Content
	}
	return ev
}

// transcript renders a request as labelled sections for `techtree llm view`.
func transcript(req Request) string {
	sections := make([]string, 0, len(req.Messages)+2)
	if req.System != "" {
		sections = append(sections, "[system]\n"+req.System)
	}
	for _, m := range req.Messages {
		sections = append(sections, fmt.Sprintf("[%s]\n%s", m.Role, m.Content))
	}
	sections = append(sections, fmt.Sprintf("[params] max_tokens=%d temperature=%.2f", req.MaxTokens, req.Temperature))
	return strings.Join(sections, "\n\n") + "\n"
}
