package order

import "context"

type Repository interface {
	// Insert fails with ErrConflict when the id or the external payment id is already taken.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentID(ctx context.Context, externalPaymentID string) (*Order, error)
	// UpdateIf stores order only while the persisted status still equals expected;
	// otherwise it fails with ErrConflict.
	UpdateIf(ctx context.Context, order *Order, expected Status) error
	Delete(ctx context.Context, id string) error
}
