package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type otelTracer struct {
	t trace.Tracer
}

// NewOtel adapts an OpenTelemetry tracer to Tracer.
func NewOtel(t trace.Tracer) Tracer {
	if t == nil {
		return NoopTracer{}
	}
	return otelTracer{t: t}
}

func (o otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, s := o.t.Start(ctx, name)
	return ctx, otelSpan{s: s}
}

type otelSpan struct {
	s trace.Span
}

// End records err on the span, if any, and ends it.
func (o otelSpan) End(err error) {
	if err != nil {
		o.s.RecordError(err)
		o.s.SetStatus(codes.Error, err.Error())
	}
	o.s.End()
}
