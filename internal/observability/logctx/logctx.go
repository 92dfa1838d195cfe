package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type loggerKey struct{}

// With stores logger on ctx. A nil logger leaves ctx unchanged.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the request or event logger carried by ctx, or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

// FromOr prefers the ctx logger, then fallback, then a no-op.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return observability.NopLogger()
}

// Enrich derives a child of the ctx logger (or base) carrying fields and stores it
// on the returned ctx, so nested calls inherit request_id, trace_id and friends.
func Enrich(ctx context.Context, base observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	logger := FromOr(ctx, base).With(fields...)
	return With(ctx, logger), logger
}
