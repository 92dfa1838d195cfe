package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// CheckoutRepository parks pending checkouts under a key that expires with the checkout.
type CheckoutRepository struct {
	client redis.UniversalClient
}

func NewCheckoutRepository(client redis.UniversalClient) *CheckoutRepository {
	return &CheckoutRepository{client: client}
}

func (r *CheckoutRepository) Save(ctx context.Context, c *payment.PendingCheckout, ttl time.Duration) error {
	if c == nil || c.GatewayOrderID == "" {
		return fmt.Errorf("checkout repository: gateway order id is required")
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkout: %w", err)
	}
	return r.client.Set(ctx, checkoutKey(c.GatewayOrderID), doc, ttl).Err()
}

func (r *CheckoutRepository) Get(ctx context.Context, gatewayOrderID string) (*payment.PendingCheckout, error) {
	raw, err := r.client.Get(ctx, checkoutKey(gatewayOrderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, payment.ErrCheckoutNotFound
		}
		return nil, err
	}
	var c payment.PendingCheckout
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode checkout: %w", err)
	}
	return &c, nil
}

func (r *CheckoutRepository) Delete(ctx context.Context, gatewayOrderID string) error {
	return r.client.Del(ctx, checkoutKey(gatewayOrderID)).Err()
}
