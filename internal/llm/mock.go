package llm

import (
	"context"
	"slices"
	"sync"
)

// MockResponse is one scripted reply. A zero StopReason means the reply
// ended normally; a non-nil Err is returned instead of a reply.
type MockResponse struct {
	Text       string
	Usage      Usage
	StopReason string
	Err        error
}

// MockProvider replays scripted replies in order and records every
// request it receives. Once the script runs out each call fails with
// ErrProviderUnavailable.
type MockProvider struct {
	mu       sync.Mutex
	script   []MockResponse
	requests []Request
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

// MockText returns a provider that answers once with text.
func MockText(text string) *MockProvider {
	return NewMockProvider(MockResponse{Text: text})
}

func (m *MockProvider) Name() string    { return "mock" }
func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	next, ok := m.record(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case !ok:
		return nil, &ErrProviderUnavailable{}
	case next.Err != nil:
		return nil, next.Err
	}

	resp := &Response{Content: next.Text, Usage: next.Usage, Model: "mock", StopReason: next.StopReason}
	if resp.StopReason == "" {
		resp.StopReason = StopEnd
	}
	return resp, nil
}

// record stores req and pops the next scripted reply.
func (m *MockProvider) record(req Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return MockResponse{}, false
	}
	next := m.script[0]
	m.script = m.script[1:]
	return next, true
}

// AddResponse appends a reply to the script.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
}

// Requests returns a copy of the requests received so far.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or a zero Request.
func (m *MockProvider) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}
	}
	return m.requests[len(m.requests)-1]
}
