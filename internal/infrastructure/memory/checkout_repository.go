package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type checkoutEntry struct {
	checkout  *payment.PendingCheckout
	expiresAt time.Time
}

// CheckoutRepository parks pending checkouts until they are consumed or expire.
type CheckoutRepository struct {
	mu      sync.Mutex
	entries map[string]checkoutEntry
	now     func() time.Time
}

func NewCheckoutRepository() *CheckoutRepository {
	return &CheckoutRepository{
		entries: make(map[string]checkoutEntry),
		now:     time.Now,
	}
}

func (r *CheckoutRepository) Save(ctx context.Context, c *payment.PendingCheckout, ttl time.Duration) error {
	_ = ctx
	if c == nil || c.GatewayOrderID == "" {
		return fmt.Errorf("checkout repository: gateway order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := checkoutEntry{checkout: cloneCheckout(c)}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	r.entries[c.GatewayOrderID] = e
	return nil
}

func (r *CheckoutRepository) Get(ctx context.Context, gatewayOrderID string) (*payment.PendingCheckout, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[gatewayOrderID]
	if !ok {
		return nil, payment.ErrCheckoutNotFound
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.entries, gatewayOrderID)
		return nil, payment.ErrCheckoutNotFound
	}
	return cloneCheckout(e.checkout), nil
}

func (r *CheckoutRepository) Delete(ctx context.Context, gatewayOrderID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, gatewayOrderID)
	return nil
}

func cloneCheckout(c *payment.PendingCheckout) *payment.PendingCheckout {
	clone := *c
	clone.Items = append([]order.CartItem(nil), c.Items...)
	return &clone
}
