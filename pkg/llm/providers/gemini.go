package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/httpclient"
	"github.com/tombee/baton/pkg/llm"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiOAuthScope     = "https://www.googleapis.com/auth/generative-language"
	geminiTokenURL       = "https://oauth2.googleapis.com/token"
)

// geminiTiers maps model tiers to Gemini model IDs.
var geminiTiers = llm.TierMap{
	llm.ModelTierFast:      "gemini-2.5-flash-lite",
	llm.ModelTierBalanced:  "gemini-2.5-flash",
	llm.ModelTierStrategic: "gemini-2.5-pro",
}

// GeminiProvider calls the Google generateContent API. It authenticates
// with either an API key (sent as a query parameter) or a service-account
// JWT-bearer token source.
type GeminiProvider struct {
	apiKey       string
	tokenSource  oauth2.TokenSource
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewGeminiProvider creates a Gemini provider using API key auth.
func NewGeminiProvider(creds *llm.APIKeyCredentials) (*GeminiProvider, error) {
	if creds == nil || creds.Key == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	p, err := newGeminiProvider(creds.BaseURL, creds.Model)
	if err != nil {
		return nil, err
	}
	p.apiKey = creds.Key
	return p, nil
}

// NewGeminiServiceAccountProvider creates a Gemini provider using a Google
// service-account key file and the OAuth2 JWT-bearer grant.
func NewGeminiServiceAccountProvider(creds *llm.ServiceAccountCredentials) (*GeminiProvider, error) {
	if creds == nil || creds.KeyFile == "" {
		return nil, fmt.Errorf("gemini: service account key file is required")
	}

	ts, err := newServiceAccountTokenSource(creds.KeyFile, geminiOAuthScope)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	p, err := newGeminiProvider(creds.BaseURL, creds.Model)
	if err != nil {
		return nil, err
	}
	p.tokenSource = ts
	return p, nil
}

func newGeminiProvider(baseURL, model string) (*GeminiProvider, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = providerRequestTimeout
	cfg.RetryAttempts = 0
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return &GeminiProvider{
		baseURL:      baseURL,
		defaultModel: model,
		httpClient:   client,
	}, nil
}

// NewGeminiWithCredentials is the registry factory for the gemini type.
// It accepts either API key or service-account credentials.
func NewGeminiWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	switch c := creds.(type) {
	case *llm.APIKeyCredentials:
		return NewGeminiProvider(c)
	case *llm.ServiceAccountCredentials:
		return NewGeminiServiceAccountProvider(c)
	default:
		return nil, fmt.Errorf("gemini: expected API key or service account credentials, got %T", creds)
	}
}

// Name implements llm.Provider.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete implements llm.Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	requestID := uuid.New().String()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	resolved := geminiTiers.Resolve(model)

	apiReq := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		apiReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Temperature != 0 || req.MaxTokens > 0 || len(req.StopSequences) > 0 {
		apiReq.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopSequences,
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "gemini",
			Message:   fmt.Sprintf("failed to marshal request: %v", err),
			RequestID: requestID,
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(resolved))
	if p.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(p.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "gemini",
			Message:   fmt.Sprintf("failed to create request: %v", err),
			RequestID: requestID,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if p.tokenSource != nil {
		tok, err := p.tokenSource.Token()
		if err != nil {
			return nil, &errors.ProviderError{
				Provider:  "gemini",
				Message:   "failed to obtain access token",
				RequestID: requestID,
				Cause:     err,
			}
		}
		tok.SetAuthHeader(httpReq)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:  "gemini",
			Message:   "request failed",
			RequestID: requestID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ProviderError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			RequestID:  requestID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		var errResp geminiErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, &errors.ProviderError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    message,
			RequestID:  requestID,
		}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &errors.ProviderError{
			Provider:  "gemini",
			Message:   fmt.Sprintf("failed to parse response: %v", err),
			RequestID: requestID,
		}
	}

	if len(apiResp.Candidates) == 0 {
		return nil, &errors.ProviderError{
			Provider:  "gemini",
			Message:   "response contained no candidates",
			RequestID: requestID,
		}
	}
	candidate := apiResp.Candidates[0]

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(part.Text)
	}

	respModel := apiResp.ModelVersion
	if respModel == "" {
		respModel = resolved
	}

	return &llm.Response{
		Text:  text.String(),
		Model: respModel,
		Usage: llm.TokenUsage{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
		},
		FinishReason: mapGeminiFinishReason(candidate.FinishReason),
	}, nil
}

func mapGeminiFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "STOP":
		return llm.FinishReasonStop
	case "MAX_TOKENS":
		return llm.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return llm.FinishReasonFiltered
	default:
		return llm.FinishReasonUnknown
	}
}

// serviceAccountKey is the subset of a Google service-account JSON key
// file that the JWT-bearer flow needs.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// newServiceAccountTokenSource loads a service-account key file and
// returns a cached token source implementing the JWT-bearer grant:
// sign an assertion with the account's RSA key, exchange it at the
// token endpoint, and reuse the access token until it expires.
func newServiceAccountTokenSource(keyFile, scope string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key missing client_email or private_key")
	}
	if key.TokenURI == "" {
		key.TokenURI = geminiTokenURL
	}

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}

	// The token endpoint tolerates replays of the same assertion, so the
	// exchange opts in to non-idempotent retries.
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 30 * time.Second
	cfg.RetryAttempts = 2
	cfg.AllowNonIdempotentRetry = true
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}

	src := &jwtBearerSource{
		key:     key,
		signKey: signKey,
		scope:   scope,
		client:  client,
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}

// jwtBearerSource mints access tokens via the OAuth2 JWT-bearer grant.
type jwtBearerSource struct {
	key     serviceAccountKey
	signKey any
	scope   string
	client  *http.Client
}

// Token implements oauth2.TokenSource.
func (s *jwtBearerSource) Token() (*oauth2.Token, error) {
	now := time.Now()

	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   s.key.ClientEmail,
		"scope": s.scope,
		"aud":   s.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := assertion.SignedString(s.signKey)
	if err != nil {
		return nil, fmt.Errorf("sign jwt assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {signed},
	}
	resp, err := s.client.PostForm(s.key.TokenURI, form)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &oauth2.Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Expiry:      now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
