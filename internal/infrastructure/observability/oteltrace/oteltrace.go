package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New uses the global tracer provider; telemetry.SetupTracing installs the SDK one.
func New(name string) observability.Tracer {
	return NewWithProvider(otel.GetTracerProvider(), name)
}

func NewWithProvider(tp trace.TracerProvider, name string) observability.Tracer {
	if name == "" {
		name = "minishop-checkout"
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
