package amqpnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	DefaultExchange = "checkout.notifications"
	exchangeType    = "topic"
)

// Channel is the part of *amqp.Channel the notifier publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notifier publishes notifications to a topic exchange keyed by kind, e.g. "order.placed".
type Notifier struct {
	ch       Channel
	conn     io.Closer
	exchange string
}

func New(ch Channel, conn io.Closer, exchange string) *Notifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Notifier{ch: ch, conn: conn, exchange: exchange}
}

// Dial connects with a few retries, opens a channel and declares the exchange.
func Dial(url, exchange string, attempts int, backoff time.Duration, logger observability.Logger) (*Notifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("amqp_dial_failed", observability.F("attempt", i+1), observability.F("error", err))
		if i < attempts-1 {
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return New(ch, conn, exchange), nil
}

func (n *Notifier) Notify(ctx context.Context, msg domnotify.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier(headers))

	return n.ch.PublishWithContext(ctx,
		n.exchange,       // exchange
		string(msg.Kind), // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.OrderID + ":" + string(msg.Kind) + ":" + msg.Status,
			Timestamp:    msg.OccurredAt,
			Headers:      headers,
			Body:         body,
		},
	)
}

func (n *Notifier) Close() error {
	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// tableCarrier lets the otel propagator write trace headers into an amqp.Table.
type tableCarrier amqp.Table

func (c tableCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c tableCarrier) Set(key, value string) { c[key] = value }

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
