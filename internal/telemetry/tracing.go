// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"go.opentelemetry.io/otel/sdk/resource"
)

// Tracer is the package-level tracer handle, mirroring prefilterTracer's
// package-var pattern.
var Tracer = otel.Tracer("memory.engine")

// TracingConfig selects the exporter backend for the tracer provider.
type TracingConfig struct {
	// OTLPEndpoint, when non-empty, sends spans via OTLP/gRPC to this
	// collector address. When empty, spans are written to stdout.
	OTLPEndpoint string
	ServiceName  string
}

// InitTracing builds and registers the global TracerProvider. The returned
// shutdown func flushes and closes the exporter; callers must invoke it on
// process exit.
func InitTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building tracing resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("building span exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer("memory.engine")

	return tp.Shutdown, nil
}

// StartSpan is a thin convenience wrapper kept consistent across packages
// that don't want to import oteltrace directly.
func StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return Tracer.Start(ctx, name)
}
