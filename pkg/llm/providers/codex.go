package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/httpclient"
	"github.com/tombee/baton/pkg/llm"
)

const codexDefaultBaseURL = "https://api.openai.com/v1"

// codexTiers maps model tiers to OpenAI model IDs.
var codexTiers = llm.TierMap{
	llm.ModelTierFast:      "gpt-4.1-mini",
	llm.ModelTierBalanced:  "gpt-4.1",
	llm.ModelTierStrategic: "o3",
}

// CodexProvider calls the OpenAI chat completions API.
type CodexProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewCodexProvider creates a Codex provider from API key credentials.
func NewCodexProvider(creds *llm.APIKeyCredentials) (*CodexProvider, error) {
	if creds == nil || creds.Key == "" {
		return nil, fmt.Errorf("codex: api key is required")
	}

	baseURL := strings.TrimSuffix(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = codexDefaultBaseURL
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = providerRequestTimeout
	cfg.RetryAttempts = 0
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("codex: %w", err)
	}

	return &CodexProvider{
		apiKey:       creds.Key,
		baseURL:      baseURL,
		defaultModel: creds.Model,
		httpClient:   client,
	}, nil
}

// NewCodexWithCredentials is the registry factory for the codex type.
func NewCodexWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	apiKey, ok := creds.(*llm.APIKeyCredentials)
	if !ok {
		return nil, fmt.Errorf("codex: expected API key credentials, got %T", creds)
	}
	return NewCodexProvider(apiKey)
}

// Name implements llm.Provider.
func (p *CodexProvider) Name() string {
	return "codex"
}

type codexChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type codexRequest struct {
	Model       string             `json:"model"`
	Messages    []codexChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_completion_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
}

type codexResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      codexChatMessage `json:"message"`
		FinishReason string           `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type codexErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements llm.Provider.
func (p *CodexProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	requestID := uuid.New().String()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]codexChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, codexChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, codexChatMessage{Role: "user", Content: req.Prompt})

	apiReq := codexRequest{
		Model:       codexTiers.Resolve(model),
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.StopSequences,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "codex",
			Message:   fmt.Sprintf("failed to marshal request: %v", err),
			RequestID: requestID,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "codex",
			Message:   fmt.Sprintf("failed to create request: %v", err),
			RequestID: requestID,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "codex",
			Message:   "request failed",
			RequestID: requestID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:   "codex",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			RequestID:  requestID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		var errResp codexErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, &errors.ProviderError{
			Provider:   "codex",
			StatusCode: resp.StatusCode,
			Message:    message,
			RequestID:  requestID,
		}
	}

	var apiResp codexResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &errors.ProviderError{
			Provider:  "codex",
			Message:   fmt.Sprintf("failed to parse response: %v", err),
			RequestID: requestID,
		}
	}

	if len(apiResp.Choices) == 0 {
		return nil, &errors.ProviderError{
			Provider:  "codex",
			Message:   "response contained no choices",
			RequestID: requestID,
		}
	}
	choice := apiResp.Choices[0]

	return &llm.Response{
		Text:  choice.Message.Content,
		Model: apiResp.Model,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
		FinishReason: mapCodexFinishReason(choice.FinishReason),
	}, nil
}

func mapCodexFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishReasonStop
	case "length":
		return llm.FinishReasonLength
	case "content_filter":
		return llm.FinishReasonFiltered
	default:
		return llm.FinishReasonUnknown
	}
}
