// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "bytegraph.batch"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func startAnalyzeSpan(ctx context.Context, name string, files, workers int) (context.Context, trace.Span) {
	return startSpan(ctx, name,
		attribute.Int("batch.files", files),
		attribute.Int("batch.workers", workers),
	)
}

func setSpanResult(span trace.Span, succeeded, failed int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("batch.succeeded", succeeded),
		attribute.Int("batch.failed", failed),
		attribute.Bool("batch.incomplete", incomplete),
	)
}

// setState records a run state transition as a span event.
func setState(span trace.Span, s State) {
	span.AddEvent("state", trace.WithAttributes(attribute.String("batch.state", s.String())))
}
