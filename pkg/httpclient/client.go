// Package httpclient provides a shared HTTP client factory with consistent
// timeout, retry, and logging behavior for everything in baton that talks to
// a remote API (LLM providers, OAuth token endpoints).
//
// Clients built here compose transport layers for:
//   - request logging with sanitized URLs (credentials in query params redacted)
//   - User-Agent injection and trace-ID propagation
//   - optional retries with exponential backoff honoring Retry-After
//   - TLS 1.2+ and connection pooling defaults
//
// Provider-level retry policy lives in pkg/llm; clients used for provider
// calls are built with RetryAttempts 0 so a request is never retried twice
// at two different layers.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config controls timeout, retry, and identification settings for a client.
type Config struct {
	// Timeout is the total request timeout, including any retries.
	// Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the maximum number of retries (0 = single attempt).
	RetryAttempts int

	// RetryBackoff is the initial delay before the first retry.
	// Must be > 0 when RetryAttempts > 0.
	RetryBackoff time.Duration

	// MaxBackoff caps the retry delay. Must be >= RetryBackoff.
	MaxBackoff time.Duration

	// UserAgent is sent on requests that don't set their own. Required.
	UserAgent string

	// AllowNonIdempotentRetry enables retries for POST/PUT/PATCH/DELETE.
	// Leave false unless the target endpoint is idempotent in practice.
	AllowNonIdempotentRetry bool
}

// DefaultConfig returns a Config with baton's standard defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  100 * time.Millisecond,
		MaxBackoff:    30 * time.Second,
		UserAgent:     "baton/1.0",
	}
}

// Validate reports whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return fmt.Errorf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)
		}
		if c.MaxBackoff < c.RetryBackoff {
			return fmt.Errorf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}
	return nil
}

// New builds an *http.Client from cfg.
//
// The transport stack, outermost first: retry (when enabled), logging,
// then a pooled TLS transport. The response header timeout matches the
// overall request timeout so a stalled server fails the attempt instead
// of consuming the whole retry budget.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var transport http.RoundTripper = newLoggingTransport(base, cfg.UserAgent)
	if cfg.RetryAttempts > 0 {
		transport = newRetryTransport(transport, cfg)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}
