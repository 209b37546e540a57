// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelConfig configures the OpenTelemetry-backed Tracer.
type OTelConfig struct {
	// ServiceName identifies this process in exported traces.
	ServiceName string
	// Endpoint is the OTLP/HTTP collector address, e.g. "localhost:4318".
	// Empty disables the exporter; spans are still recorded and can be
	// inspected locally but nothing is shipped.
	Endpoint string
	Insecure bool
}

// OTelTracer adapts the orchestrator's Tracer interface onto a real
// go.opentelemetry.io/otel SDK pipeline so spans can be exported to any
// OTLP-compatible backend (Jaeger, Tempo, Honeycomb, ...).
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer

	// live tracks the raw OTel span behind each lightweight *Span so
	// EndSpan (whose signature is fixed by the Tracer interface) can find
	// it and call End() without threading a context through.
	mu   sync.Mutex
	live map[string]oteltrace.Span
}

// NewOTelTracer builds an OTelTracer. If cfg.Endpoint is empty the tracer
// still records spans in-process (useful for RecordMetric-style local
// inspection) but never exports them.
func NewOTelTracer(ctx context.Context, cfg OTelConfig) (*OTelTracer, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "stratuscode-orchestrator"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("observability: build otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &OTelTracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		live:     make(map[string]oteltrace.Span),
	}, nil
}

// StartSpan opens both an OTel span (for export) and the orchestrator's
// lightweight Span (for the places that read Span fields directly, e.g.
// tests).
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	ctx, otelSpan := t.tracer.Start(ctx, name)

	span := &Span{
		SpanID:     otelSpan.SpanContext().SpanID().String(),
		TraceID:    otelSpan.SpanContext().TraceID().String(),
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(span)
	}
	for k, v := range span.Attributes {
		otelSpan.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}

	t.mu.Lock()
	t.live[span.SpanID] = otelSpan
	t.mu.Unlock()

	return ContextWithSpan(ctx, span), span
}

// EndSpan closes the underlying OTel span and finalizes timing on the
// lightweight Span.
func (t *OTelTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	t.mu.Lock()
	otelSpan, ok := t.live[span.SpanID]
	delete(t.live, span.SpanID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if span.Status.Code == StatusError {
		otelSpan.RecordError(fmt.Errorf("%s", span.Status.Message))
	}
	otelSpan.End()
}

// RecordMetric is a no-op here; this tracer exports traces only.
func (t *OTelTracer) RecordMetric(name string, value float64, labels map[string]string) {}

// RecordEvent adds a standalone event to the current span in ctx, if any.
func (t *OTelTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	if span := SpanFromContext(ctx); span != nil {
		span.AddEvent(name, attributes)
	}
}

// Flush drains the batch span processor, ensuring exported spans reach the
// collector before the caller proceeds (e.g. at process shutdown).
func (t *OTelTracer) Flush(ctx context.Context) error {
	return t.provider.ForceFlush(ctx)
}

// Shutdown stops the tracer provider, flushing any pending spans first.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

var _ Tracer = (*OTelTracer)(nil)
