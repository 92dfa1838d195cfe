package lognotify

import (
	"context"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// Notifier writes notifications to the service log. It is the dev default.
type Notifier struct {
	log observability.Logger
}

func New(logger observability.Logger) *Notifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Notifier{log: logger.With(observability.F("component", "notifier"))}
}

func (n *Notifier) Notify(ctx context.Context, msg domnotify.Notification) error {
	fields := []observability.Field{
		observability.F("kind", string(msg.Kind)),
		observability.F("order_id", msg.OrderID),
		observability.F("status", msg.Status),
		observability.F("customer_id", msg.CustomerID),
		observability.F("total", msg.Total.StringFixed(2)),
		observability.F("items", msg.Items),
	}
	if msg.PreviousState != "" {
		fields = append(fields, observability.F("previous_status", msg.PreviousState))
	}
	logctx.FromOr(ctx, n.log).Info("notification_sent", fields...)
	return nil
}

func (n *Notifier) Close() error { return nil }
