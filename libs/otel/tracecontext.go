package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context in a form that can be stored next
// to a row and restored when the row is processed later.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Traceparent: carrier.Get("traceparent"), Tracestate: carrier.Get("tracestate")}
}

// Attach returns ctx with tc as the remote parent. An empty tc leaves ctx
// unchanged.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.Traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Traceparent}
	if tc.Tracestate != "" {
		carrier["tracestate"] = tc.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
