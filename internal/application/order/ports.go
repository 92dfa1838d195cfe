package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

// Reserver is satisfied by the inventory engine.
type Reserver interface {
	Reserve(ctx context.Context, reqs []dominv.Request) (*dominv.Reservation, error)
	Release(ctx context.Context, records []dominv.Record)
}

// CartNormalizer is satisfied by the pricing normalizer.
type CartNormalizer interface {
	Normalize(ctx context.Context, items []domain.CartItem, opts pricing.Options) (*pricing.Result, error)
}
