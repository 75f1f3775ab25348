package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/httpclient"
	"github.com/tombee/baton/pkg/llm"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockTiers maps model tiers to Bedrock model IDs for Anthropic models.
var bedrockTiers = llm.TierMap{
	llm.ModelTierFast:      "anthropic.claude-haiku-4-5-20251001-v1:0",
	llm.ModelTierBalanced:  "anthropic.claude-sonnet-4-5-20250929-v1:0",
	llm.ModelTierStrategic: "anthropic.claude-opus-4-1-20250805-v1:0",
}

// BedrockProvider calls Anthropic models hosted on AWS Bedrock. Requests
// are signed with SigV4 using the ambient AWS credential chain, so it
// works with environment credentials, shared config profiles, and
// instance roles alike.
type BedrockProvider struct {
	region       string
	endpoint     string
	defaultModel string
	awsCfg       aws.Config
	signer       *v4.Signer
	httpClient   *http.Client
}

// NewBedrockProvider creates a Bedrock provider for the given region.
func NewBedrockProvider(creds *llm.AWSCredentials) (*BedrockProvider, error) {
	if creds == nil || creds.Region == "" {
		return nil, fmt.Errorf("bedrock: aws region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(creds.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = providerRequestTimeout
	cfg.RetryAttempts = 0
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}

	return &BedrockProvider{
		region:       creds.Region,
		endpoint:     fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", creds.Region),
		defaultModel: creds.Model,
		awsCfg:       awsCfg,
		signer:       v4.NewSigner(),
		httpClient:   client,
	}, nil
}

// NewBedrockWithCredentials is the registry factory for the bedrock type.
func NewBedrockWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	awsCreds, ok := creds.(*llm.AWSCredentials)
	if !ok {
		return nil, fmt.Errorf("bedrock: expected AWS credentials, got %T", creds)
	}
	return NewBedrockProvider(awsCreds)
}

// Name implements llm.Provider.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// Verify confirms the credential chain resolves to a caller identity.
// Run this before a pipeline rather than discovering expired credentials
// on the first agent step.
func (p *BedrockProvider) Verify(ctx context.Context) error {
	client := sts.NewFromConfig(p.awsCfg)
	identity, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("bedrock: aws credentials unusable: %w", err)
	}
	if identity.Arn == nil || *identity.Arn == "" {
		return fmt.Errorf("bedrock: aws credentials resolved to no identity")
	}
	return nil
}

// bedrockRequest is the Anthropic Messages body as Bedrock expects it:
// the model moves to the URL and anthropic_version into the body.
type bedrockRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
	Temperature      float64         `json:"temperature,omitempty"`
	StopSequences    []string        `json:"stop_sequences,omitempty"`
}

type bedrockErrorResponse struct {
	Message string `json:"message"`
}

// Complete implements llm.Provider.
func (p *BedrockProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	requestID := uuid.New().String()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	resolved := bedrockTiers.Resolve(model)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		System:           req.System,
		Messages:         []claudeMessage{{Role: "user", Content: req.Prompt}},
		Temperature:      req.Temperature,
		StopSequences:    req.StopSequences,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "bedrock",
			Message:   fmt.Sprintf("failed to marshal request: %v", err),
			RequestID: requestID,
		}
	}

	endpoint := fmt.Sprintf("%s/model/%s/invoke", p.endpoint, url.PathEscape(resolved))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "bedrock",
			Message:   fmt.Sprintf("failed to create request: %v", err),
			RequestID: requestID,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	awsCreds, err := p.awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:    "bedrock",
			Message:     "failed to resolve aws credentials",
			SuggestText: "Check AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or your shared config profile",
			RequestID:   requestID,
			Cause:       err,
		}
	}

	payloadHash := sha256.Sum256(body)
	if err := p.signer.SignHTTP(ctx, awsCreds, httpReq, hex.EncodeToString(payloadHash[:]), "bedrock", p.region, time.Now()); err != nil {
		return nil, &errors.ProviderError{
			Provider:  "bedrock",
			Message:   "failed to sign request",
			RequestID: requestID,
			Cause:     err,
		}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "bedrock",
			Message:   "request failed",
			RequestID: requestID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:   "bedrock",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			RequestID:  requestID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		var errResp bedrockErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		return nil, &errors.ProviderError{
			Provider:    "bedrock",
			StatusCode:  resp.StatusCode,
			Message:     message,
			SuggestText: bedrockSuggestion(resp.StatusCode),
			RequestID:   requestID,
		}
	}

	// Bedrock's Anthropic runtime returns the Messages API response shape.
	var apiResp claudeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &errors.ProviderError{
			Provider:  "bedrock",
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

	respModel := apiResp.Model
	if respModel == "" {
		respModel = resolved
	}

	return &llm.Response{
		Text:  text.String(),
		Model: respModel,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
		FinishReason: mapClaudeStopReason(apiResp.StopReason),
	}, nil
}

func bedrockSuggestion(statusCode int) string {
	switch statusCode {
	case http.StatusForbidden:
		return "Check IAM permissions for bedrock:InvokeModel and that the model is enabled in this region"
	case http.StatusNotFound:
		return "Model not available in this region; check the model ID and region"
	case http.StatusTooManyRequests:
		return "Bedrock throttled the request; configure requests_per_minute or request a quota increase"
	default:
		return ""
	}
}
