package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type captureNotifier struct {
	got []domnotify.Notification
	err error
}

func (c *captureNotifier) Notify(_ context.Context, n domnotify.Notification) error {
	c.got = append(c.got, n)
	return c.err
}

func (c *captureNotifier) Close() error { return nil }

type mapSubscriber map[string]domoutbox.Handler

func (m mapSubscriber) Subscribe(name string, h domoutbox.Handler) { m[name] = h }

func testOrder(t *testing.T) *domorder.Order {
	t.Helper()
	o, err := domorder.New("o-1",
		domorder.Customer{ID: "u-1", Email: "u1@example.com", Name: "Asha"},
		[]domorder.LineItem{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}},
		domorder.Address{},
		domorder.Pricing{TotalPrice: decimal.RequireFromString("530.00")},
		domorder.PaymentInfo{Provider: domorder.ProviderCOD},
	)
	require.NoError(t, err)
	return o
}

func TestWorkerDeliversOrderEvents(t *testing.T) {
	notifier := &captureNotifier{}
	subs := mapSubscriber{}
	var wrapped []string
	mw := func(next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			wrapped = append(wrapped, e.EventName())
			return next(ctx, e)
		}
	}
	New(notifier, nil).Register(subs, mw)
	require.Len(t, subs, 2)

	o := testOrder(t)
	require.NoError(t, subs["order.placed"](context.Background(), domorder.NewOrderPlacedEvent(o)))

	_, err := o.TransitionTo(domorder.StatusShipped, time.Now())
	require.NoError(t, err)
	require.NoError(t, subs["order.status_changed"](context.Background(), domorder.NewOrderStatusChangedEvent(o, domorder.StatusProcessing)))

	require.Len(t, notifier.got, 2)
	placed := notifier.got[0]
	assert.Equal(t, domnotify.KindOrderPlaced, placed.Kind)
	assert.Equal(t, "o-1", placed.OrderID)
	assert.Equal(t, "u1@example.com", placed.CustomerEmail)
	assert.Equal(t, 3, placed.Items)
	assert.Equal(t, "530", placed.Total.String())

	changed := notifier.got[1]
	assert.Equal(t, domnotify.KindOrderStatusChanged, changed.Kind)
	assert.Equal(t, "Shipped", changed.Status)
	assert.Equal(t, "Processing", changed.PreviousState)

	assert.Equal(t, []string{"order.placed", "order.status_changed"}, wrapped)
}

func TestWorkerReportsNotifierFailure(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("smtp down")}
	subs := mapSubscriber{}
	New(notifier, nil).Register(subs)

	err := subs["order.placed"](context.Background(), domorder.NewOrderPlacedEvent(testOrder(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestWorkerIgnoresForeignEvents(t *testing.T) {
	notifier := &captureNotifier{}
	subs := mapSubscriber{}
	New(notifier, nil).Register(subs)

	require.NoError(t, subs["order.placed"](context.Background(), domorder.NewOrderStatusChangedEvent(testOrder(t), "")))
	assert.Empty(t, notifier.got)
}
