package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	batonerrors "github.com/tombee/baton/pkg/errors"
)

// FailoverConfig controls failover and circuit-breaking behavior.
type FailoverConfig struct {
	// FailureThreshold is the number of consecutive failures that
	// opens a provider's circuit.
	FailureThreshold int

	// Cooldown is how long an open circuit rejects calls before
	// allowing a half-open probe.
	Cooldown time.Duration
}

// DefaultFailoverConfig returns the standard failover policy.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// FailoverProvider tries providers in order until one succeeds. Each
// provider has a circuit breaker: after enough consecutive failures it
// is skipped until its cooldown elapses, then probed with a single call.
//
// Authentication and request-validation failures do not trigger
// failover; a bad request will be bad everywhere, and a bad key is a
// configuration problem the user needs to see.
type FailoverProvider struct {
	providers []Provider
	breakers  []*circuitBreaker
	config    FailoverConfig
}

// NewFailoverProvider builds a failover chain over providers, tried in
// the order given. Zero-valued config fields fall back to defaults.
func NewFailoverProvider(config FailoverConfig, providers ...Provider) *FailoverProvider {
	defaults := DefaultFailoverConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}

	breakers := make([]*circuitBreaker, len(providers))
	for i := range providers {
		breakers[i] = &circuitBreaker{
			threshold: config.FailureThreshold,
			cooldown:  config.Cooldown,
		}
	}
	return &FailoverProvider{
		providers: providers,
		breakers:  breakers,
		config:    config,
	}
}

// Name implements Provider.
func (f *FailoverProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

// Complete implements Provider, trying each provider in order.
func (f *FailoverProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("failover: no providers configured")
	}

	var errs []error
	for i, p := range f.providers {
		breaker := f.breakers[i]
		if !breaker.allow() {
			errs = append(errs, fmt.Errorf("%s: circuit open", p.Name()))
			continue
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			breaker.recordSuccess()
			return resp, nil
		}

		breaker.recordFailure()
		if !shouldFailover(err) {
			return nil, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failover: all providers failed: %w", errors.Join(errs...))
}

// BreakerStates reports each provider's circuit state, for status output.
func (f *FailoverProvider) BreakerStates() map[string]string {
	states := make(map[string]string, len(f.providers))
	for i, p := range f.providers {
		states[p.Name()] = f.breakers[i].state()
	}
	return states
}

// shouldFailover reports whether an error warrants trying the next
// provider. Context cancellation stops the chain; auth and validation
// errors surface immediately.
func shouldFailover(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var provErr *batonerrors.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.StatusCode {
		case 400, 401, 403, 404, 422:
			return false
		}
	}
	return true
}

// circuitBreaker tracks consecutive failures for one provider.
//
// Closed: calls flow, failures count up. Open: calls rejected until the
// cooldown elapses. Half-open: one probe call is admitted; success
// closes the circuit, failure reopens it.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures int
	openedAt time.Time
	probing  bool
}

func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if time.Since(b.openedAt) < b.cooldown {
		return false
	}
	// Half-open: admit a single probe.
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	if b.failures >= b.threshold {
		b.openedAt = time.Now()
	}
}

func (b *circuitBreaker) state() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.failures < b.threshold:
		return "closed"
	case time.Since(b.openedAt) < b.cooldown:
		return "open"
	default:
		return "half-open"
	}
}
