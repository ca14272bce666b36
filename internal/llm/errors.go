package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when no usable provider is configured.
var ErrNotConfigured = errors.New("LLM provider not configured")

// ErrRateLimit indicates the provider rejected the call because it is
// rate limiting (429) or overloaded (503, 529). It is the only error class
// the retry wrapper retries.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Overloaded bool
	Err        error
}

func (e *ErrRateLimit) Error() string {
	kind := "rate limited"
	if e.Overloaded {
		kind = "provider overloaded"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s): %v", kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %v", kind, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the provider answered without usable text.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider failed for a reason other
// than rate limiting: server errors, network failures, bad credentials.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates a reply that had to be complete, such as a
// JSON object, was cut off at the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Limit   int
	Content string
}

func (e *ErrMaxTokensExceeded) Error() string {
	return fmt.Sprintf("LLM response truncated at %d tokens", e.Limit)
}

// ErrTimeout indicates a single provider call exceeded the configured
// request timeout. Timeouts are never retried.
type ErrTimeout struct {
	After time.Duration
	Err   error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("LLM request timed out after %s", e.After)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

func errEmptyReply(vendor string) error {
	return fmt.Errorf("no text content in %s response", vendor)
}

// IsTransient reports whether err is a rate-limit or overload rejection.
func IsTransient(err error) bool {
	var rl *ErrRateLimit
	return errors.As(err, &rl)
}
