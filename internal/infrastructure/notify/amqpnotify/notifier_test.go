package amqpnotify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestNotifyPublishesToTopic(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "notify")
	defer span.End()

	ch := &fakeChannel{}
	n := New(ch, nil, "")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := n.Notify(ctx, domnotify.Notification{
		Kind:       domnotify.KindOrderPlaced,
		OrderID:    "o-1",
		Status:     "Processing",
		Total:      decimal.RequireFromString("530"),
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	got := ch.sent[0]
	assert.Equal(t, DefaultExchange, got.exchange)
	assert.Equal(t, "order.placed", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, at, got.msg.Timestamp)
	assert.NotEmpty(t, got.msg.Headers["traceparent"])

	var body domnotify.Notification
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, "o-1", body.OrderID)
	assert.True(t, body.Total.Equal(decimal.NewFromInt(530)))
}

func TestNotifyError(t *testing.T) {
	n := New(&fakeChannel{err: errors.New("channel closed")}, nil, "shop")
	err := n.Notify(context.Background(), domnotify.Notification{Kind: domnotify.KindOrderPlaced})
	assert.EqualError(t, err, "channel closed")
}

func TestCloseClosesChannelAndConnection(t *testing.T) {
	ch, conn := &fakeChannel{}, &fakeConn{}
	require.NoError(t, New(ch, conn, "shop").Close())
	assert.True(t, ch.closed)
	assert.True(t, conn.closed)
}
