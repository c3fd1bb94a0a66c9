package events

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tarsy-labs/extrakt/pkg/external"
)

const tracerName = "extrakt"

// OtelTracer is a Tracer backed by the globally registered OpenTelemetry
// TracerProvider. With no provider configured, the global no-op provider is
// used automatically and every span is inert.
type OtelTracer struct{}

// StartSpan implements external.Tracer.
func (OtelTracer) StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, external.Span) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return spanCtx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

// SetAttributes implements external.Span.
func (s otelSpan) SetAttributes(attrs map[string]interface{}) {
	s.span.SetAttributes(toAttributes(attrs)...)
}

// RecordError implements external.Span.
func (s otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End implements external.Span.
func (s otelSpan) End() {
	s.span.End()
}

func toAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return out
}
