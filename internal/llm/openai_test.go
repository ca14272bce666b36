package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client: client,
		model:  "gpt-4o-mini",
	}
}

func TestOpenAIProvider_HappyPath(t *testing.T) {
	var gotMessages int
	handler := func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotMessages = len(body.Messages)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": "```json\n{\"score\": 1, \"is_correct\": true}\n```",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     40,
				"completion_tokens": 25,
				"total_tokens":      65,
			},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	resp, err := p.Generate(t.Context(), Request{
		System:    "Evaluate the answer.",
		Messages:  []Message{{Role: RoleUser, Content: "My answer is 4."}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMessages != 2 {
		t.Fatalf("expected system + user messages, got %d", gotMessages)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if resp.StopReason != StopEnd {
		t.Fatalf("expected stop reason %q, got %q", StopEnd, resp.StopReason)
	}
	if !strings.HasPrefix(resp.Text(), "```json") {
		t.Fatalf("reply text should be returned as sent, got %q", resp.Text())
	}
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		wantRateLimit  bool
		wantOverloaded bool
	}{
		{"rate limit", http.StatusTooManyRequests, true, false},
		{"overloaded", http.StatusServiceUnavailable, true, true},
		{"server error", http.StatusInternalServerError, false, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"type":    "error",
						"message": http.StatusText(tt.status),
					},
				})
			})

			_, err := p.Generate(t.Context(), Request{
				Messages:  []Message{{Role: RoleUser, Content: "test"}},
				MaxTokens: 100,
			})
			if err == nil {
				t.Fatal("expected error")
			}

			var rl *ErrRateLimit
			if errors.As(err, &rl) != tt.wantRateLimit {
				t.Fatalf("rate limit = %v, want %v (%T: %v)", !tt.wantRateLimit, tt.wantRateLimit, err, err)
			}
			if tt.wantRateLimit && rl.Overloaded != tt.wantOverloaded {
				t.Fatalf("overloaded = %v, want %v", rl.Overloaded, tt.wantOverloaded)
			}
			if !tt.wantRateLimit {
				var unavail *ErrProviderUnavailable
				if !errors.As(err, &unavail) {
					t.Fatalf("expected ErrProviderUnavailable, got: %T (%v)", err, err)
				}
			}
		})
	}
}

func TestOpenAIProvider_TruncatedAndEmpty(t *testing.T) {
	reply := func(finish string, contents ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			choices := make([]map[string]any, len(contents))
			for i, c := range contents {
				choices[i] = map[string]any{
					"index":         i,
					"message":       map[string]any{"role": "assistant", "content": c},
					"finish_reason": finish,
				}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o-mini", "choices": choices})
		}
	}
	req := Request{Messages: []Message{{Role: RoleUser, Content: "x"}}, MaxTokens: 8}

	resp, err := newTestOpenAIProvider(t, reply("length", `{"score": 0.`)).Generate(t.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Truncated() {
		t.Errorf("stop reason = %q, want %q", resp.StopReason, StopMaxTokens)
	}

	for name, h := range map[string]http.HandlerFunc{
		"no choices":   reply("stop"),
		"blank choice": reply("stop", "  \n"),
	} {
		_, err := newTestOpenAIProvider(t, h).Generate(t.Context(), req)
		var invalid *ErrInvalidResponse
		if !errors.As(err, &invalid) {
			t.Errorf("%s: expected ErrInvalidResponse, got %T (%v)", name, err, err)
		}
	}
}

func TestOpenAIProvider_BaseURLOverride(t *testing.T) {
	cfg := OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o",
		BaseURL: "https://openrouter.ai/api/v1",
	}
	p, err := NewOpenAIProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "gpt-4o" || p.Name() != "openai" {
		t.Fatalf("unexpected identity %q / %q", p.Name(), p.ModelID())
	}
}
