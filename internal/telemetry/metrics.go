// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded during pipeline execution.
// A nil *Metrics is valid; every method checks for it so callers can
// record unconditionally.
type Metrics struct {
	runsTotal             metric.Int64Counter
	stepsTotal            metric.Int64Counter
	providerRequestsTotal metric.Int64Counter
	tokensTotal           metric.Int64Counter
	interpolationMisses   metric.Int64Counter

	runDuration     metric.Float64Histogram
	stepDuration    metric.Float64Histogram
	providerLatency metric.Float64Histogram

	activeRuns   map[string]bool
	activeRunsMu sync.RWMutex
}

// NewMetrics registers baton's instruments on the given meter provider.
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	meter := meterProvider.Meter("baton")

	m := &Metrics{
		activeRuns: make(map[string]bool),
	}

	var err error

	m.runsTotal, err = meter.Int64Counter(
		"baton_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	m.stepsTotal, err = meter.Int64Counter(
		"baton_steps_total",
		metric.WithDescription("Total number of pipeline steps executed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	m.providerRequestsTotal, err = meter.Int64Counter(
		"baton_provider_requests_total",
		metric.WithDescription("Total number of LLM provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.tokensTotal, err = meter.Int64Counter(
		"baton_tokens_total",
		metric.WithDescription("Total number of tokens processed"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	m.interpolationMisses, err = meter.Int64Counter(
		"baton_interpolation_misses_total",
		metric.WithDescription("Template expressions left unresolved after interpolation"),
		metric.WithUnit("{expression}"),
	)
	if err != nil {
		return nil, err
	}

	m.runDuration, err = meter.Float64Histogram(
		"baton_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.stepDuration, err = meter.Float64Histogram(
		"baton_step_duration_seconds",
		metric.WithDescription("Step execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.providerLatency, err = meter.Float64Histogram(
		"baton_provider_latency_seconds",
		metric.WithDescription("LLM provider request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"baton_active_runs",
		metric.WithDescription("Number of currently active pipeline runs"),
		metric.WithUnit("{run}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			m.activeRunsMu.RLock()
			count := len(m.activeRuns)
			m.activeRunsMu.RUnlock()
			observer.Observe(int64(count))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRunStart marks a run active.
func (m *Metrics) RecordRunStart(ctx context.Context, runID string) {
	if m == nil {
		return
	}
	m.activeRunsMu.Lock()
	m.activeRuns[runID] = true
	m.activeRunsMu.Unlock()
}

// RecordRunComplete records a finished run and clears its active marker.
func (m *Metrics) RecordRunComplete(ctx context.Context, runID, pipeline, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRunsMu.Lock()
	delete(m.activeRuns, runID)
	m.activeRunsMu.Unlock()

	attrs := []attribute.KeyValue{
		attribute.String("pipeline", pipeline),
		attribute.String("status", status),
	}
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordStep records a completed step.
func (m *Metrics) RecordStep(ctx context.Context, pipeline, step, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("pipeline", pipeline),
		attribute.String("step", step),
		attribute.String("status", status),
	}
	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderRequest records one LLM call with its token usage.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, model, status string, tokensIn, tokensOut int, latency time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status),
	}
	m.providerRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attrs...))

	if tokensIn > 0 {
		m.tokensTotal.Add(ctx, int64(tokensIn),
			metric.WithAttributes(append(attrs, attribute.String("type", "input"))...))
	}
	if tokensOut > 0 {
		m.tokensTotal.Add(ctx, int64(tokensOut),
			metric.WithAttributes(append(attrs, attribute.String("type", "output"))...))
	}
}

// RecordInterpolationMiss counts a template expression that survived
// interpolation unresolved.
func (m *Metrics) RecordInterpolationMiss(ctx context.Context, pipeline, step string) {
	if m == nil {
		return
	}
	m.interpolationMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("step", step),
	))
}
