package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrNotDeletable           = errors.New("order: only delivered orders can be deleted")
	ErrForbidden              = errors.New("order: forbidden")
	ErrEmpty                  = errors.New("order: at least one item is required")
	ErrInvalidStatus          = errors.New("order: unknown status")
)

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

const (
	ProviderGateway = "gateway"
	ProviderCOD     = "cod"

	RoleAdmin = "admin"
)

// CartItem is a line as submitted by the client, before validation.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	GiftWrap  bool   `json:"gift_wrap,omitempty"`
}

// LineItem is frozen at order creation; later catalog edits do not touch it.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	GiftWrap  bool            `json:"gift_wrap,omitempty"`
}

type PaymentInfo struct {
	ExternalPaymentID string `json:"external_payment_id,omitempty"`
	GatewayOrderID    string `json:"gateway_order_id,omitempty"`
	Status            string `json:"status"`
	Provider          string `json:"provider"`
	Method            string `json:"method,omitempty"`
	Signature         string `json:"signature,omitempty"`
}

type Pricing struct {
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	GiftWrapPrice decimal.Decimal `json:"gift_wrap_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Actor is the caller an operation is performed on behalf of.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type Order struct {
	ID                string      `json:"id"`
	Customer          Customer    `json:"customer"`
	Items             []LineItem  `json:"items"`
	ShippingAddress   Address     `json:"shipping_address"`
	Status            Status      `json:"status"`
	PaymentInfo       PaymentInfo `json:"payment_info"`
	Pricing           Pricing     `json:"pricing"`
	InventoryReserved bool        `json:"inventory_reserved"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// New builds an order whose items have already been reserved.
func New(id string, customer Customer, items []LineItem, address Address, pricing Pricing, payment PaymentInfo) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	now := time.Now().UTC()
	return &Order{
		ID:                id,
		Customer:          customer,
		Items:             append([]LineItem(nil), items...),
		ShippingAddress:   address,
		Status:            StatusProcessing,
		PaymentInfo:       payment,
		Pricing:           pricing,
		InventoryReserved: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// AccessibleBy reports whether actor may read or cancel the order.
func (o *Order) AccessibleBy(actor Actor) bool {
	return actor.IsAdmin() || (actor.UserID != "" && actor.UserID == o.Customer.ID)
}

// CanDelete enforces that only delivered orders are removed.
func (o *Order) CanDelete() error {
	if o.Status != StatusDelivered {
		return fmt.Errorf("%w: status %s", ErrNotDeletable, o.Status)
	}
	return nil
}

// ReleaseRecords describes the stock held by this order.
func (o *Order) ReleaseRecords() []inventory.Record {
	records := make([]inventory.Record, 0, len(o.Items))
	for _, it := range o.Items {
		records = append(records, inventory.Record{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
		})
	}
	return records
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

func (o *Order) touch(at time.Time) {
	o.UpdatedAt = at
}
