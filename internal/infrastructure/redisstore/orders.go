package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

// OrderRepository stores orders as JSON documents. The payment index has no TTL
// and survives Delete, so a payment id can only ever be consumed once.
type OrderRepository struct {
	client redis.UniversalClient
}

func NewOrderRepository(client redis.UniversalClient) *OrderRepository {
	return &OrderRepository{client: client}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}

	keys := []string{orderKey(order.ID)}
	if pid := order.PaymentInfo.ExternalPaymentID; pid != "" {
		keys = append(keys, paymentKey(pid))
	}
	n, err := insertOrderScript.Run(ctx, r.client, keys, doc, order.ID).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	raw, err := r.client.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, externalPaymentID string) (*domain.Order, error) {
	if externalPaymentID == "" {
		return nil, domain.ErrNotFound
	}
	id, err := r.client.Get(ctx, paymentKey(externalPaymentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *OrderRepository) UpdateIf(ctx context.Context, order *domain.Order, expected domain.Status) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}

	n, err := updateOrderScript.Run(ctx, r.client, []string{orderKey(order.ID)}, string(expected), doc).Int64()
	if err != nil {
		return err
	}
	switch n {
	case -1:
		return domain.ErrNotFound
	case 0:
		return fmt.Errorf("%w: status is no longer %s", domain.ErrConflict, expected)
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, orderKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
