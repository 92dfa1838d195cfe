package workerpresentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

type placed struct{}

func (placed) EventName() string { return "order.placed" }

func TestEventMiddlewareBindsSpanAndLogger(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	core, logs := observer.New(zap.InfoLevel)
	logger := zaplogger.Wrap(zap.New(core))
	tel := infraobs.New(oteltrace.NewWithProvider(tp, "test"), logger, nil, nil)

	boom := errors.New("smtp down")
	var handler domoutbox.Handler = func(ctx context.Context, _ domoutbox.Event) error {
		logctx.FromOr(ctx, nil).Info("handled")
		return boom
	}

	err := EventMiddleware(logger, tel)(handler)(context.Background(), placed{})
	require.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "event order.placed", spans[0].Name())
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "order.placed", fields["event"])
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), fields["trace_id"])
	assert.NotEmpty(t, fields["event_id"])
}

func TestWithEventContextKeepsCallerEventID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zaplogger.Wrap(zap.New(core))

	ctx := WithEventContext(context.Background(), logger, nil, trace.TraceID{}, trace.SpanID{}, map[string]string{
		"event_id": "evt-1",
		"queue":    "",
	})
	logctx.FromOr(ctx, nil).Info("x")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "queue")
}
