package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "reserve")
	defer span.End()

	tc := CaptureTraceContext(ctx)
	if tc.Traceparent == "" {
		t.Fatalf("expected traceparent to be injected")
	}

	restored := tc.Attach(context.Background())
	got := trace.SpanContextFromContext(restored)
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("expected trace id %s, got %s", span.SpanContext().TraceID(), got.TraceID())
	}
}

func TestEmptyTraceContextKeepsContext(t *testing.T) {
	ctx := context.Background()
	if got := (TraceContext{}).Attach(ctx); got != ctx {
		t.Fatalf("expected the same context back")
	}
	if tc := CaptureTraceContext(ctx); tc.Traceparent != "" {
		t.Fatalf("expected no traceparent without a span, got %q", tc.Traceparent)
	}
}
