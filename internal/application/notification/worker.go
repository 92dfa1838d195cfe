package notification

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	workerService = "notification-worker"
	notifierPeer  = "notifier"
)

// Worker turns order events into customer notifications. Delivery failures are
// logged and returned to the bus, never to the request that caused the event.
type Worker struct {
	notifier domnotify.Notifier
	obs      application.Instruments
}

func New(notifier domnotify.Notifier, tel observability.Observability) *Worker {
	return &Worker{
		notifier: notifier,
		obs:      application.NewInstruments(tel, workerService),
	}
}

// Register subscribes the worker to the order events it handles.
func (w *Worker) Register(sub domoutbox.Subscriber, mws ...domoutbox.Middleware) {
	if sub == nil || w.notifier == nil {
		return
	}
	sub.Subscribe(domorder.OrderPlacedEvent{}.EventName(), domoutbox.Chain(w.handleOrderPlaced, mws...))
	sub.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), domoutbox.Chain(w.handleStatusChanged, mws...))
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	n := fromOrder(domnotify.KindOrderPlaced, &evt.Order)
	n.OccurredAt = evt.OccurredAt
	return w.deliver(ctx, "notification.order_placed", n)
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	n := fromOrder(domnotify.KindOrderStatusChanged, &evt.Order)
	n.PreviousState = string(evt.From)
	n.OccurredAt = evt.OccurredAt
	return w.deliver(ctx, "notification.order_status_changed", n)
}

func (w *Worker) deliver(ctx context.Context, useCase string, n domnotify.Notification) (err error) {
	ctx, run := w.obs.Start(ctx, useCase, "Notify",
		attribute.String("order.id", n.OrderID),
		attribute.String("notification.kind", string(n.Kind)),
	)
	defer func() { run.End(err) }()

	err = w.obs.External(ctx, notifierPeer, string(n.Kind), func(ctx context.Context) error {
		return w.notifier.Notify(ctx, n)
	})
	if err != nil {
		run.Fail("NOTIFY_FAILED")
		return fmt.Errorf("notification: %s for order %s: %w", n.Kind, n.OrderID, err)
	}
	run.Field(observability.F("order_id", n.OrderID))
	return nil
}

func fromOrder(kind domnotify.Kind, o *domorder.Order) domnotify.Notification {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	return domnotify.Notification{
		Kind:          kind,
		OrderID:       o.ID,
		Status:        string(o.Status),
		CustomerID:    o.Customer.ID,
		CustomerEmail: o.Customer.Email,
		CustomerName:  o.Customer.Name,
		Total:         o.Pricing.TotalPrice,
		Items:         items,
	}
}
