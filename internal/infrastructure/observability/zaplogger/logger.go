package zaplogger

import (
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	"go.uber.org/zap"
)

type logger struct{ l *zap.Logger }

// New builds the service logger on top of logging.NewLogger.
func New(service, env string) (*Logger, error) {
	l, err := logging.NewLogger(service, env)
	if err != nil {
		return nil, err
	}
	return Wrap(l), nil
}

// Logger is the port adapter plus the lifecycle hooks main needs.
type Logger struct {
	observability.Logger
	z *zap.Logger
}

// Wrap adapts an existing zap logger.
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{Logger: &logger{l: l}, z: l}
}

// Zap exposes the underlying logger for libraries that want one.
func (z *Logger) Zap() *zap.Logger { return z.z }

// Sync flushes any buffered log entries. Safe to call on shutdown.
func (z *Logger) Sync() error { return z.z.Sync() }

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return &logger{l: z.l}
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z *logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z *logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
