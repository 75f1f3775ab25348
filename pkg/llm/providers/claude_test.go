package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	batonerrors "github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/llm"
)

func TestNewClaudeProvider(t *testing.T) {
	if _, err := NewClaudeProvider(nil); err == nil {
		t.Error("expected error for nil credentials, got nil")
	}
	if _, err := NewClaudeProvider(&llm.APIKeyCredentials{}); err == nil {
		t.Error("expected error for empty key, got nil")
	}

	p, err := NewClaudeProvider(&llm.APIKeyCredentials{Key: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewClaudeProvider() error = %v", err)
	}
	if p.Name() != "claude" {
		t.Errorf("Name() = %q, want %q", p.Name(), "claude")
	}
	if p.baseURL != claudeDefaultBaseURL {
		t.Errorf("expected default base URL, got %q", p.baseURL)
	}
}

func TestClaudeProvider_Complete(t *testing.T) {
	var gotReq claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("x-api-key = %q, want %q", got, "sk-ant-test")
		}
		if got := r.Header.Get("anthropic-version"); got != claudeAPIVersion {
			t.Errorf("anthropic-version = %q, want %q", got, claudeAPIVersion)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		fmt.Fprint(w, `{
			"id": "msg_01",
			"model": "claude-haiku-4-5",
			"stop_reason": "end_turn",
			"content": [
				{"type": "text", "text": "Hello"},
				{"type": "text", "text": "world"}
			],
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`)
	}))
	defer server.Close()

	p, err := NewClaudeProvider(&llm.APIKeyCredentials{Key: "sk-ant-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClaudeProvider() error = %v", err)
	}

	resp, err := p.Complete(context.Background(), &llm.Request{
		Model:       "fast",
		System:      "You are terse.",
		Prompt:      "Say hello",
		MaxTokens:   100,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotReq.Model != "claude-haiku-4-5" {
		t.Errorf("request model = %q, want tier-resolved %q", gotReq.Model, "claude-haiku-4-5")
	}
	if gotReq.System != "You are terse." {
		t.Errorf("request system = %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || gotReq.Messages[0].Content != "Say hello" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 100 {
		t.Errorf("request max_tokens = %d, want 100", gotReq.MaxTokens)
	}

	if resp.Text != "Hello\nworld" {
		t.Errorf("response text = %q, want %q", resp.Text, "Hello\nworld")
	}
	if resp.Model != "claude-haiku-4-5" {
		t.Errorf("response model = %q", resp.Model)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("response usage = %+v", resp.Usage)
	}
	if resp.FinishReason != llm.FinishReasonStop {
		t.Errorf("finish reason = %q, want %q", resp.FinishReason, llm.FinishReasonStop)
	}
}

func TestClaudeProvider_DefaultMaxTokens(t *testing.T) {
	var gotReq claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"model":"m","stop_reason":"end_turn","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer server.Close()

	p, _ := NewClaudeProvider(&llm.APIKeyCredentials{Key: "k", BaseURL: server.URL})
	if _, err := p.Complete(context.Background(), &llm.Request{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want default %d", gotReq.MaxTokens, defaultMaxTokens)
	}
}

func TestClaudeProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`)
	}))
	defer server.Close()

	p, _ := NewClaudeProvider(&llm.APIKeyCredentials{Key: "bad", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), &llm.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var provErr *batonerrors.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", provErr.StatusCode)
	}
	if provErr.Message != "invalid x-api-key" {
		t.Errorf("message = %q, want API error message", provErr.Message)
	}
	if provErr.Suggestion() == "" {
		t.Error("expected a suggestion for 401")
	}
	if provErr.RequestID == "" {
		t.Error("expected a request ID")
	}
}

func TestMapClaudeStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want llm.FinishReason
	}{
		{"end_turn", llm.FinishReasonStop},
		{"stop_sequence", llm.FinishReasonStop},
		{"max_tokens", llm.FinishReasonLength},
		{"refusal", llm.FinishReasonFiltered},
		{"something_new", llm.FinishReasonUnknown},
	}
	for _, tt := range tests {
		if got := mapClaudeStopReason(tt.in); got != tt.want {
			t.Errorf("mapClaudeStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClaudeTiers(t *testing.T) {
	for _, tier := range []llm.ModelTier{llm.ModelTierFast, llm.ModelTierBalanced, llm.ModelTierStrategic} {
		if claudeTiers[tier] == "" {
			t.Errorf("claudeTiers missing %q", tier)
		}
	}
}
