package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewOtelNilFallsBackToNoop(t *testing.T) {
	if _, ok := NewOtel(nil).(NoopTracer); !ok {
		t.Fatalf("expected NoopTracer for nil otel tracer")
	}
}

func TestOtelSpanCarriesContext(t *testing.T) {
	tr := NewOtel(noop.NewTracerProvider().Tracer("actorstate"))
	ctx, span := tr.Start(context.Background(), "op")
	if _, ok := span.(otelSpan); !ok {
		t.Fatalf("expected otel span, got %T", span)
	}
	if trace.SpanFromContext(ctx).IsRecording() {
		t.Fatalf("noop provider spans must not record")
	}
	span.End(errors.New("boom"))
}
