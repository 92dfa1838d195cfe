package kafkanotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
)

const (
	DefaultTopic = "checkout-notifications"
	kindHeader   = "notification-kind"
)

// Writer is the part of *kafka.Writer the notifier needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a writer that hashes on the message key, keeping every
// notification for one order on one partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

type Notifier struct {
	w Writer
}

func New(w Writer) *Notifier {
	return &Notifier{w: w}
}

func (n *Notifier) Notify(ctx context.Context, msg domnotify.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	headers := headerCarrier{{Key: kindHeader, Value: []byte(msg.Kind)}}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return n.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.OrderID),
		Value:   body,
		Headers: headers,
		Time:    msg.OccurredAt,
	})
}

func (n *Notifier) Close() error { return n.w.Close() }

// headerCarrier lets the otel propagator write trace headers into kafka headers.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}
