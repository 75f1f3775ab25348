package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tombee/baton/pkg/llm"
)

func TestMockProvider_Echo(t *testing.T) {
	mock := NewMockProvider()

	resp, err := mock.Complete(context.Background(), &llm.Request{Prompt: "summarize this"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(resp.Text, "summarize this") {
		t.Errorf("expected echo of prompt, got %q", resp.Text)
	}
	if resp.FinishReason != llm.FinishReasonStop {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.OutputTokens == 0 {
		t.Error("expected estimated output tokens")
	}
}

func TestMockProvider_FixedResponse(t *testing.T) {
	mock := NewMockProvider()
	mock.ResponseText = `{"sentiment": "positive"}`

	resp, err := mock.Complete(context.Background(), &llm.Request{Prompt: "classify"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != `{"sentiment": "positive"}` {
		t.Errorf("expected fixed response, got %q", resp.Text)
	}
}

func TestMockProvider_Error(t *testing.T) {
	mock := NewMockProvider()
	mock.Err = errors.New("simulated outage")

	if _, err := mock.Complete(context.Background(), &llm.Request{Prompt: "hi"}); err == nil {
		t.Error("expected configured error, got nil")
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected call recorded even on error, got %d", mock.CallCount())
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider()
	mock.Complete(context.Background(), &llm.Request{Prompt: "first"})
	mock.Complete(context.Background(), &llm.Request{Prompt: "second", Model: "fast"})

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Prompt != "first" || calls[1].Prompt != "second" {
		t.Errorf("calls = %+v", calls)
	}
	if calls[1].Model != "fast" {
		t.Errorf("expected model recorded, got %q", calls[1].Model)
	}

	mock.Reset()
	if mock.CallCount() != 0 {
		t.Errorf("expected 0 calls after reset, got %d", mock.CallCount())
	}
}

func TestMockProvider_DelayHonorsContext(t *testing.T) {
	mock := NewMockProvider()
	mock.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := mock.Complete(ctx, &llm.Request{Prompt: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("delay did not respect context cancellation")
	}
}

func TestRegisteredFactories(t *testing.T) {
	for _, typ := range []string{"claude", "gemini", "codex", "bedrock", "mock"} {
		if !llm.DefaultRegistry().HasFactory(typ) {
			t.Errorf("expected factory registered for %q", typ)
		}
	}
}
