package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tombee/baton/pkg/llm"
)

// MockProvider is a deterministic in-process provider used by tests and
// dry runs. It never talks to the network: responses echo the prompt (or
// a fixed text), and usage is estimated from lengths so downstream
// accounting still has numbers to aggregate.
type MockProvider struct {
	// ResponseText, when set, is returned for every call instead of the
	// prompt echo.
	ResponseText string

	// Err, when set, is returned for every call.
	Err error

	// Delay simulates provider latency before responding.
	Delay time.Duration

	mu    sync.Mutex
	calls []llm.Request
}

// NewMockProvider creates a mock provider with echo behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// NewMockWithCredentials is the registry factory for the mock type.
// Credentials are accepted and ignored so config wiring stays uniform.
func NewMockWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	return NewMockProvider(), nil
}

// Name implements llm.Provider.
func (p *MockProvider) Name() string {
	return "mock"
}

// Complete implements llm.Provider.
func (p *MockProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, *req)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.Err != nil {
		return nil, p.Err
	}

	text := p.ResponseText
	if text == "" {
		text = fmt.Sprintf("[mock] %s", req.Prompt)
	}

	return &llm.Response{
		Text:  text,
		Model: "mock",
		Usage: llm.TokenUsage{
			InputTokens:  estimateTokens(req.System) + estimateTokens(req.Prompt),
			OutputTokens: estimateTokens(text),
		},
		FinishReason: llm.FinishReasonStop,
	}, nil
}

// Calls returns a copy of every request received so far.
func (p *MockProvider) Calls() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many requests were received.
func (p *MockProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset clears the recorded calls.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// estimateTokens approximates tokens as one per four characters.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
