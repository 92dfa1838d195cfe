package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOrderPlaced        Kind = "order.placed"
	KindOrderStatusChanged Kind = "order.status_changed"
)

// Notification is the transport-neutral message handed to a Notifier.
type Notification struct {
	Kind          Kind            `json:"kind"`
	OrderID       string          `json:"order_id"`
	Status        string          `json:"status"`
	PreviousState string          `json:"previous_status,omitempty"`
	CustomerID    string          `json:"customer_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Items         int             `json:"items"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Notifier delivers notifications. Callers never let its failures affect a checkout.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}
