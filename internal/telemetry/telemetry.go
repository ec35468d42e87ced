// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package telemetry wires up OpenTelemetry span creation for the control
// plane without assuming an OTLP collector is reachable. No exporter
// dependency exists anywhere in this module, so spans are never shipped
// off-process; instead a span processor folds each finished span's
// trace ID, duration, and attributes into the structured logger, which
// is enough to correlate a slow or failed step across log lines without
// standing up collector infrastructure.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewProvider builds a TracerProvider that always samples and logs every
// finished span through logger rather than exporting it anywhere.
func NewProvider(serviceName string, logger *zap.Logger) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger}),
	)
}

// logSpanProcessor implements sdktrace.SpanProcessor by logging each span
// on end. It never blocks the caller on I/O, so it's safe to run inline
// rather than via a batching goroutine.
type logSpanProcessor struct {
	logger *zap.Logger
}

func (p *logSpanProcessor) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.String("span_id", s.SpanContext().SpanID().String()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	if code := s.Status().Code; code.String() == "Error" {
		p.logger.Warn("span: "+s.Name(), append(fields, zap.String("status", s.Status().Description))...)
		return
	}
	p.logger.Debug("span: "+s.Name(), fields...)
}

func (p *logSpanProcessor) Shutdown(_ context.Context) error { return nil }

func (p *logSpanProcessor) ForceFlush(_ context.Context) error { return nil }

// Attr is a small convenience re-export so callers in other packages
// don't need their own otel/attribute import just to build span attributes.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ShutdownTimeout bounds NewProvider's eventual Shutdown call from
// cmd/flowengine, kept here so the constant lives beside the provider it
// governs.
const ShutdownTimeout = 5 * time.Second
