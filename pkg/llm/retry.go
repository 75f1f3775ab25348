package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"time"

	batonerrors "github.com/tombee/baton/pkg/errors"
)

// RetryConfig controls the retry behavior of a RetryWrapper.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each attempt.
	BackoffMultiplier float64

	// Jitter is the random fraction (0..1) added to each delay to
	// avoid thundering herds.
	Jitter float64
}

// DefaultRetryConfig returns the standard retry policy for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// RetryWrapper decorates a Provider with retries on transient failures.
// Rate limits (429), server errors (5xx), and network timeouts are
// retried; authentication and validation failures are not, and neither
// is context cancellation.
type RetryWrapper struct {
	provider Provider
	config   RetryConfig
}

// NewRetryWrapper wraps a provider with the given retry policy.
// Zero-valued config fields fall back to defaults.
func NewRetryWrapper(provider Provider, config RetryConfig) *RetryWrapper {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	return &RetryWrapper{provider: provider, config: config}
}

// Name implements Provider.
func (w *RetryWrapper) Name() string {
	return w.provider.Name()
}

// Unwrap returns the wrapped provider.
func (w *RetryWrapper) Unwrap() Provider {
	return w.provider
}

// Complete implements Provider, retrying transient failures with
// exponential backoff.
func (w *RetryWrapper) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(w.backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := w.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%s: all %d attempts failed: %w", w.provider.Name(), w.config.MaxAttempts, lastErr)
}

// backoff computes the delay before retry n (1-based).
func (w *RetryWrapper) backoff(retry int) time.Duration {
	d := float64(w.config.InitialBackoff)
	for i := 1; i < retry; i++ {
		d *= w.config.BackoffMultiplier
	}
	if d > float64(w.config.MaxBackoff) {
		d = float64(w.config.MaxBackoff)
	}
	if w.config.Jitter > 0 {
		d += rand.Float64() * d * w.config.Jitter
	}
	return time.Duration(d)
}

// IsRetryable classifies an error as transient. Provider errors are
// judged by HTTP status; network timeouts are transient; context
// cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var provErr *batonerrors.ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode == 429:
			return true
		case provErr.StatusCode == 408:
			return true
		case provErr.StatusCode >= 500 && provErr.StatusCode < 600:
			return true
		case provErr.StatusCode > 0:
			return false
		}
		// No status: fall through to cause inspection.
		return isNetworkError(provErr.Cause)
	}

	return isNetworkError(err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isNetworkError(urlErr.Err)
	}
	return false
}
