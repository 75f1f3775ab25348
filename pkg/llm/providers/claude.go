// Package providers implements baton's built-in LLM providers and
// registers their factories with the pkg/llm registry:
//
//	import _ "github.com/tombee/baton/pkg/llm/providers"
//
// Each provider translates the neutral llm.Request into its API's wire
// format and maps failures onto *errors.ProviderError so the retry and
// failover wrappers can classify them by HTTP status.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/httpclient"
	"github.com/tombee/baton/pkg/llm"
)

const (
	claudeDefaultBaseURL   = "https://api.anthropic.com/v1"
	claudeAPIVersion       = "2023-06-01"
	defaultMaxTokens       = 4096
	providerRequestTimeout = 120 * time.Second
)

// claudeTiers maps model tiers to Anthropic model IDs.
var claudeTiers = llm.TierMap{
	llm.ModelTierFast:      "claude-haiku-4-5",
	llm.ModelTierBalanced:  "claude-sonnet-4-5",
	llm.ModelTierStrategic: "claude-opus-4-1",
}

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewClaudeProvider creates a Claude provider from API key credentials.
func NewClaudeProvider(creds *llm.APIKeyCredentials) (*ClaudeProvider, error) {
	if creds == nil || creds.Key == "" {
		return nil, fmt.Errorf("claude: api key is required")
	}

	baseURL := strings.TrimSuffix(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}

	// Retries happen in the llm.RetryWrapper, not the transport.
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = providerRequestTimeout
	cfg.RetryAttempts = 0
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	return &ClaudeProvider{
		apiKey:       creds.Key,
		baseURL:      baseURL,
		defaultModel: creds.Model,
		httpClient:   client,
	}, nil
}

// NewClaudeWithCredentials is the registry factory for the claude type.
func NewClaudeWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	apiKey, ok := creds.(*llm.APIKeyCredentials)
	if !ok {
		return nil, fmt.Errorf("claude: expected API key credentials, got %T", creds)
	}
	return NewClaudeProvider(apiKey)
}

// Name implements llm.Provider.
func (p *ClaudeProvider) Name() string {
	return "claude"
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model         string          `json:"model"`
	MaxTokens     int             `json:"max_tokens"`
	System        string          `json:"system,omitempty"`
	Messages      []claudeMessage `json:"messages"`
	Temperature   float64         `json:"temperature,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
}

type claudeResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements llm.Provider.
func (p *ClaudeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	requestID := uuid.New().String()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := claudeRequest{
		Model:         claudeTiers.Resolve(model),
		MaxTokens:     maxTokens,
		System:        req.System,
		Messages:      []claudeMessage{{Role: "user", Content: req.Prompt}},
		Temperature:   req.Temperature,
		StopSequences: req.StopSequences,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "claude",
			Message:   fmt.Sprintf("failed to marshal request: %v", err),
			RequestID: requestID,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "claude",
			Message:   fmt.Sprintf("failed to create request: %v", err),
			RequestID: requestID,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "claude",
			Message:   "request failed",
			RequestID: requestID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:   "claude",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			RequestID:  requestID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		var errResp claudeErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, &errors.ProviderError{
			Provider:    "claude",
			StatusCode:  resp.StatusCode,
			Message:     message,
			SuggestText: claudeSuggestion(resp.StatusCode),
			RequestID:   requestID,
		}
	}

	var apiResp claudeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &errors.ProviderError{
			Provider:  "claude",
			Message:   fmt.Sprintf("failed to parse response: %v", err),
			RequestID: requestID,
		}
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type != "text" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(block.Text)
	}

	return &llm.Response{
		Text:  text.String(),
		Model: apiResp.Model,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
		FinishReason: mapClaudeStopReason(apiResp.StopReason),
	}, nil
}

func mapClaudeStopReason(stopReason string) llm.FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return llm.FinishReasonStop
	case "max_tokens":
		return llm.FinishReasonLength
	case "refusal":
		return llm.FinishReasonFiltered
	default:
		return llm.FinishReasonUnknown
	}
}

func claudeSuggestion(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "Check that your API key is valid: baton secrets set providers/claude/api_key"
	case http.StatusForbidden:
		return "Your API key may not have access to this model"
	case http.StatusNotFound:
		return "Check the model name; run with model: balanced to use the default"
	case http.StatusTooManyRequests:
		return "Rate limited; configure requests_per_minute to stay under your quota"
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return "Anthropic API issue; retry shortly or configure failover_providers"
	default:
		return ""
	}
}
