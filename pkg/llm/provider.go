// Package llm defines the provider abstraction baton's pipeline executor
// calls for agent steps, plus the wrappers that make those calls robust:
// retry with backoff, client-side rate limiting, and failover across
// providers with circuit breaking.
//
// Providers register factories with the package registry at import time and
// are activated with credentials at startup:
//
//	import _ "github.com/tombee/baton/pkg/llm/providers"
//
//	err := llm.Activate("claude", &llm.APIKeyCredentials{Key: apiKey})
package llm

import "context"

// Provider is a single LLM backend capable of completing a prompt.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider type name (e.g., "claude", "codex").
	Name() string

	// Complete sends a prompt and returns the full response.
	// The returned error is a *errors.ProviderError for API-level
	// failures, carrying the HTTP status for retry classification.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request describes a single completion call.
type Request struct {
	// Model is a provider model ID or a tier name (fast, balanced,
	// strategic). Empty selects the provider's balanced default.
	Model string

	// System is the system prompt, if any.
	System string

	// Prompt is the user message content.
	Prompt string

	// MaxTokens caps the generated output. Zero uses the provider default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero leaves the
	// provider default in place.
	Temperature float64

	// StopSequences end generation early when emitted by the model.
	StopSequences []string
}

// Response is a completed generation.
type Response struct {
	// Text is the concatenated text content of the response.
	Text string

	// Model is the concrete model that produced the response.
	Model string

	// Usage reports token consumption for this call.
	Usage TokenUsage

	// FinishReason states why generation stopped.
	FinishReason FinishReason
}

// TokenUsage counts tokens consumed by a completion.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another usage count into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// FinishReason explains why a completion stopped.
type FinishReason string

const (
	// FinishReasonStop means the model completed naturally or hit a
	// stop sequence.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength means the MaxTokens budget was exhausted.
	FinishReasonLength FinishReason = "length"

	// FinishReasonFiltered means the provider suppressed content.
	FinishReasonFiltered FinishReason = "content_filter"

	// FinishReasonUnknown is used when the provider reported nothing
	// recognizable.
	FinishReasonUnknown FinishReason = ""
)
