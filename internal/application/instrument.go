package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Instruments holds the RED metrics, tracer and base logger shared by the use
// cases of one service. Build it once at wiring time.
type Instruments struct {
	log    observability.Logger
	tracer observability.Tracer

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return Instruments{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger, preferring the one carried by ctx.
func (in Instruments) Logger(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, in.log)
}

// Run tracks one use case execution. End must be deferred by the caller.
type Run struct {
	in      Instruments
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the UC.<name> span and returns a ctx carrying the use case logger.
func (in Instruments) Start(ctx context.Context, useCase, name string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+name, attrs...)
	ctx, logger := logctx.Enrich(ctx, in.log, observability.F("use_case", useCase))
	return ctx, &Run{
		in:      in,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Span() trace.Span { return r.span }

func (r *Run) Logger() observability.Logger { return r.logger }

// Fail marks the run as failed with an upper-snake status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// Field adds a field to the final use_case_done record.
func (r *Run) Field(f observability.Field) {
	r.fields = append(r.fields, f)
}

// End closes the span, records RED metrics and emits use_case_done.
func (r *Run) End(err error) {
	if err != nil && r.outcome == "success" {
		r.outcome = "error"
		if r.status == "OK" {
			r.status = "FAILED"
		}
	}
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	r.logger.Info("use_case_done", fields...)
}

// External times a call to a collaborator outside the process and records
// external_requests_total and external_request_duration_seconds.
func (in Instruments) External(ctx context.Context, peer, endpoint string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	outcome := "success"
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
	return err
}

// Publish enqueues e on the outbox with a short deadline that ignores the
// caller's cancellation. The error is for logging only.
func (in Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil || e == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return in.External(pubCtx, publishPeer, e.EventName(), func(ctx context.Context) error {
		return publisher.Publish(ctx, e)
	})
}
