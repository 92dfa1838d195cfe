package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, queue, etc.
) context.Context {
	if base == nil {
		base = observability.OrNop(tel).Logger()
	}

	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, 6)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	reqLogger := base.With(fields...)
	return logctx.With(ctx, reqLogger)
}

// EventMiddleware opens a consumer span per delivered event and binds an
// event-scoped logger to the handler context.
func EventMiddleware(base observability.Logger, tel observability.Observability) domoutbox.Middleware {
	tel = observability.OrNop(tel)
	return func(next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			name := e.EventName()
			ctx, span := tel.Tracer().Start(ctx, "event "+name,
				attribute.String("messaging.system", "outbox"),
				attribute.String("messaging.operation", "process"),
				attribute.String("event", name),
			)
			defer span.End()

			sc := span.SpanContext()
			ctx = WithEventContext(ctx, base, tel, sc.TraceID(), sc.SpanID(), map[string]string{
				"event": name,
			})
			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
	}
}
