package llm

import (
	"sort"
	"sync"
)

// UsageTracker aggregates token usage across the provider calls of a run
// so the executor can report per-provider and total consumption.
// Safe for concurrent use; parallel steps record into the same tracker.
type UsageTracker struct {
	mu         sync.Mutex
	byProvider map[string]TokenUsage
	total      TokenUsage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byProvider: make(map[string]TokenUsage)}
}

// Record adds a call's usage under the provider's name.
func (t *UsageTracker) Record(provider string, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.byProvider[provider]
	u.Add(usage)
	t.byProvider[provider] = u
	t.total.Add(usage)
}

// Total returns the aggregate usage across all providers.
func (t *UsageTracker) Total() TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ByProvider returns a copy of the per-provider usage map.
func (t *UsageTracker) ByProvider() map[string]TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]TokenUsage, len(t.byProvider))
	for name, u := range t.byProvider {
		out[name] = u
	}
	return out
}

// Providers returns the names that have recorded usage, sorted.
func (t *UsageTracker) Providers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.byProvider))
	for name := range t.byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
