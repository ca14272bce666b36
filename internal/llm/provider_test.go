package llm

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/techtree/internal/store"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: `{"intent":"chatting"}`, Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Text: "```json\n{\"score\": 1}\n```"},
	)

	resp1, err := mock.Generate(t.Context(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text() != `{"intent":"chatting"}` {
		t.Fatalf("unexpected content %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}

	resp2, err := mock.Generate(t.Context(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp2.Text(), "```json") || resp2.Truncated() {
		t.Fatalf("expected raw fenced text, got %q", resp2.Text())
	}
	if mock.LastRequest().Messages[0].Content != "second" {
		t.Fatalf("LastRequest did not record the second call")
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(t.Context(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{}})
	_, err := mock.Generate(t.Context(), Request{})
	if !IsTransient(err) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}
	if _, ok := SessionFrom(ctx); ok {
		t.Fatal("expected no session on a bare context")
	}

	ctx = WithPurpose(ctx, "intent")
	ctx = WithSession(ctx, "learner-1", "lesson-9")
	if p := PurposeFrom(ctx); p != "intent" {
		t.Fatalf("expected 'intent', got %q", p)
	}
	s, ok := SessionFrom(ctx)
	if !ok || s.LearnerID != "learner-1" || s.LessonID != "lesson-9" {
		t.Fatalf("unexpected session %+v", s)
	}
}

// slowProvider blocks until its context is done.
type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestTimeoutProvider(t *testing.T) {
	p := WithTimeout(slowProvider{}, 10*time.Millisecond)

	_, err := p.Generate(t.Context(), Request{})
	var te *ErrTimeout
	if !errors.As(err, &te) {
		t.Fatalf("expected ErrTimeout, got %T (%v)", err, err)
	}
	if IsTransient(err) {
		t.Fatal("timeouts must not be classified as transient")
	}
}

func TestTimeoutProvider_ParentCancellationIsNotATimeout(t *testing.T) {
	p := WithTimeout(slowProvider{}, time.Hour)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Generate(ctx, Request{})
	var te *ErrTimeout
	if errors.As(err, &te) {
		t.Fatal("parent cancellation reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithTimeout_DisabledReturnsInner(t *testing.T) {
	mock := NewMockProvider()
	if WithTimeout(mock, 0) != Provider(mock) {
		t.Fatal("expected the inner provider when timeout is disabled")
	}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
}

func (r *recordingEvents) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return nil
}

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	events := &recordingEvents{}
	mock := NewMockProvider(
		MockResponse{Text: `{"intent":"quiz"}`, Usage: Usage{InputTokens: 12, OutputTokens: 3}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
	)
	p := WithLogging(mock, events, nil)

	ctx := WithSession(WithPurpose(t.Context(), "intent"), "l1", "lesson-1")
	req := Request{System: "classify", Messages: []Message{{Role: RoleUser, Content: "quiz me"}}}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("expected error on second call")
	}

	if len(events.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events.events))
	}
	ok, failed := events.events[0], events.events[1]
	if !ok.Success || ok.Purpose != "intent" || ok.InputTokens != 12 || ok.LearnerID != "l1" || ok.LessonID != "lesson-1" {
		t.Fatalf("unexpected success event %+v", ok)
	}
	if ok.Provider != "mock" || ok.Model != "mock" {
		t.Fatalf("unexpected success event %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[system]\nclassify") || ok.ResponseBody != `{"intent":"quiz"}` {
		t.Fatalf("request/response bodies not captured: %+v", ok)
	}
	if failed.Success || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failure event %+v", failed)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(t.Context(), DefaultConfig(), nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = "mock"
	p, err := NewProvider(t.Context(), cfg, nil, nil)
	if err != nil || p.ModelID() != "mock" {
		t.Fatalf("mock provider: %v", err)
	}

	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	p, err = NewProvider(t.Context(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("openai provider: %v", err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Fatalf("expected retry wrapper outermost, got %T", p)
	}
	if p.ModelID() != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", p.ModelID())
	}

	cfg.Provider = "bogus"
	if _, err := NewProvider(t.Context(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no provider", Config{}, false},
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"gemini without key", Config{Provider: "gemini"}, true},
		{"openrouter with key", Config{Provider: "openrouter", OpenRouter: OpenRouterConfig{APIKey: "k"}}, false},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"negative retries", Config{Provider: "mock", Retry: RetryConfig{MaxRetries: -1}}, true},
		{"unknown provider", Config{Provider: "unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Discover(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")

	cfg := DefaultConfig()
	if !cfg.Discover() || cfg.Provider != "anthropic" || cfg.Anthropic.APIKey != "sk-ant" {
		t.Fatalf("unexpected discovery result %+v", cfg)
	}

	explicit := Config{Provider: "mock"}
	if !explicit.Discover() || explicit.Provider != "mock" {
		t.Fatal("an explicit provider must not be replaced")
	}
}

func TestLookupCost(t *testing.T) {
	if c := LookupCost("gpt-4o-mini"); c == nil || math.Abs(c.Cost(1_000_000, 0)-0.15) > 1e-9 {
		t.Fatalf("unexpected cost for gpt-4o-mini: %+v", c)
	}
	if LookupCost("google/gemini-2.0-flash-exp") == nil {
		t.Fatal("expected vendor-prefixed lookup to match")
	}
	if LookupCost("no-such-model") != nil {
		t.Fatal("expected nil for unknown model")
	}
}
