package llm

import (
	"context"
	"strings"
)

// Provider is the core abstraction for LLM interaction.
// Every tutor node reaches the model through a Provider.
type Provider interface {
	// Generate sends a prompt and returns the model's reply text. The text
	// is not interpreted: a JSON reply may be fenced, surrounded by prose
	// or malformed, and callers extract what they need from it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation. Tutor nodes render history into a
	// single user message, so this is usually one entry long.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stop reasons, normalized across providers.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
)

// Response holds the LLM's output.
type Response struct {
	// Content is the reply text.
	Content string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is StopEnd or StopMaxTokens.
	StopReason string
}

// Text returns the reply text. It is safe on a nil Response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return r.Content
}

// Truncated reports whether generation stopped at the token limit.
func (r *Response) Truncated() bool {
	return r != nil && r.StopReason == StopMaxTokens
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// named is implemented by providers that report a vendor name for the
// event log.
type named interface {
	Name() string
}

// providerName returns the vendor name of p, falling back to its model.
func providerName(p Provider) string {
	if n, ok := p.(named); ok {
		return n.Name()
	}
	return p.ModelID()
}

// replyText builds a Response from the text parts a provider returned.
// An empty reply is an invalid response.
func replyText(vendor string, parts []string) (string, error) {
	text := strings.Join(parts, "")
	if strings.TrimSpace(text) == "" {
		return "", &ErrInvalidResponse{Err: errEmptyReply(vendor)}
	}
	return text, nil
}

// endUser returns the learner the call is made for, for providers that
// accept an end-user tag.
func endUser(ctx context.Context) string {
	if s, ok := SessionFrom(ctx); ok {
		return s.LearnerID
	}
	return ""
}
