package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byPayment map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byPayment: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	// The payment index outlives deleted orders so a payment can never be consumed twice.
	key := order.PaymentInfo.ExternalPaymentID
	if key != "" {
		if _, exists := r.byPayment[key]; exists {
			return domain.ErrConflict
		}
		r.byPayment[key] = order.ID
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, externalPaymentID string) (*domain.Order, error) {
	_ = ctx
	if externalPaymentID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byPayment[externalPaymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) UpdateIf(ctx context.Context, order *domain.Order, expected domain.Status) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return fmt.Errorf("%w: status is %s, expected %s", domain.ErrConflict, current.Status, expected)
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[id]; !exists {
		return domain.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}
