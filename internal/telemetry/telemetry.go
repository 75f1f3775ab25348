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

// Package telemetry wires OpenTelemetry tracing and metrics for pipeline runs.
// Everything here is optional: a disabled config yields a provider whose
// methods are safe no-ops, so callers never branch on telemetry being on.
package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config controls telemetry setup.
type Config struct {
	// Enabled turns telemetry on. When false, Setup returns a no-op provider.
	Enabled bool

	// ServiceName identifies this process in traces. Defaults to "baton".
	ServiceName string

	// ServiceVersion is stamped on the trace resource.
	ServiceVersion string

	// Exporter selects the span exporter: stdout (default), otlp-http, otlp-grpc.
	Exporter string

	// Endpoint is the collector endpoint for the OTLP exporters.
	Endpoint string

	// Insecure disables TLS on OTLP connections (development only).
	Insecure bool

	// Headers are sent with each OTLP export request.
	Headers map[string]string

	// MetricsAddr serves Prometheus metrics when non-empty (e.g. ":9464").
	MetricsAddr string
}

// Provider owns the tracer and meter providers for one process.
type Provider struct {
	tp         *sdktrace.TracerProvider
	mp         *sdkmetric.MeterProvider
	metrics    *Metrics
	metricsSrv *http.Server
}

// Setup initializes tracing and metrics from cfg. The returned provider is
// never nil; with telemetry disabled it is an inert shell.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "baton"
	}

	// Empty schema URL avoids conflicts when merging with the default resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	p := &Provider{tp: tp, mp: mp, metrics: metrics}

	if cfg.MetricsAddr != "" {
		p.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := p.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Default().Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	return p, nil
}

// newSpanExporter builds the configured span exporter.
func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
				MinVersion: tls.VersionTLS12,
			}))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)

	case ExporterOTLPGRPC:
		var dialOpts []grpc.DialOption
		if cfg.Insecure {
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		} else {
			creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
		}

		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(dialOpts...),
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter %q (supported: stdout, otlp-http, otlp-grpc)", cfg.Exporter)
	}
}

// Tracer returns a tracer for the given instrumentation scope.
// A disabled provider returns a no-op tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Metrics returns the metrics instruments, or nil when telemetry is disabled.
// All Metrics methods are nil-safe.
func (p *Provider) Metrics() *Metrics {
	if p == nil {
		return nil
	}
	return p.metrics
}

// ForceFlush exports pending spans and metrics synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	return p.mp.ForceFlush(ctx)
}

// Shutdown flushes and releases all telemetry resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var firstErr error
	if p.metricsSrv != nil {
		if err := p.metricsSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
