package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

var (
	ErrSignatureMismatch    = errors.New("payment: signature mismatch")
	ErrGateway              = errors.New("payment: gateway error")
	ErrPaymentNotSuccessful = errors.New("payment: payment not successful")
	ErrCheckoutNotFound     = errors.New("payment: checkout not found")
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Successful reports whether the gateway considers the funds secured.
func (s Status) Successful() bool {
	return s == StatusCaptured || s == StatusAuthorized
}

// GatewayOrder is the gateway-side order a client pays against.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// Payment is the gateway's view of a single payment attempt.
type Payment struct {
	ID      string
	OrderID string
	Status  Status
	Method  string
	Amount  int64
}

// Gateway is the outbound port to the payment provider. Amounts are in minor units.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, metadata map[string]string) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// PendingCheckout is the priced cart parked between opening a gateway order and
// verifying its payment.
type PendingCheckout struct {
	GatewayOrderID  string           `json:"gateway_order_id"`
	Customer        order.Customer   `json:"customer"`
	Items           []order.CartItem `json:"items"`
	ShippingAddress order.Address    `json:"shipping_address"`
	GiftWrap        bool             `json:"gift_wrap,omitempty"`
	Pricing         order.Pricing    `json:"pricing"`
	Amount          int64            `json:"amount"`
	Currency        string           `json:"currency"`
	CreatedAt       time.Time        `json:"created_at"`
}

type CheckoutRepository interface {
	Save(ctx context.Context, checkout *PendingCheckout, ttl time.Duration) error
	// Get fails with ErrCheckoutNotFound once the checkout is gone or expired.
	Get(ctx context.Context, gatewayOrderID string) (*PendingCheckout, error)
	Delete(ctx context.Context, gatewayOrderID string) error
}
