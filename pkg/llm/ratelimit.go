package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a provider with a client-side
// token bucket, keeping batch pipelines inside a provider's request
// quota instead of burning the retry budget on 429s.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps a provider with a requests-per-minute
// limit. A burst of up to one tenth of the per-minute budget (minimum 1)
// is allowed so short pipelines aren't serialized. Zero or negative rpm
// returns the provider unwrapped.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rpm)/60, burst),
	}
}

// Name implements Provider.
func (p *RateLimitedProvider) Name() string {
	return p.provider.Name()
}

// Unwrap returns the wrapped provider.
func (p *RateLimitedProvider) Unwrap() Provider {
	return p.provider
}

// Limit returns the configured rate in requests per second.
func (p *RateLimitedProvider) Limit() rate.Limit {
	return p.limiter.Limit()
}

// Complete implements Provider, blocking until the limiter admits the
// request or the context is done.
func (p *RateLimitedProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", p.provider.Name(), err)
	}
	return p.provider.Complete(ctx, req)
}
