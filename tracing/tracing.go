// Package tracing is the optional span hook used around storage operations.
package tracing

import "context"

// Span is ended once with the error the traced operation returned.
type Span interface {
	End(err error)
}

// Tracer starts spans. NoopTracer is used when none is configured.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// NoopTracer is a tracer that does nothing.
type NoopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}
