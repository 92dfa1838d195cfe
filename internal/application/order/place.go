package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

type PlaceInput struct {
	Customer        domain.Customer
	Items           []domain.CartItem
	ShippingAddress domain.Address
	GiftWrap        bool
	Payment         domain.PaymentInfo
}

// Placer turns a cart into a persisted order: normalize, reserve, insert. If the
// insert fails the reservation is released before the error is returned.
type Placer struct {
	normalizer CartNormalizer
	reserver   Reserver
	repo       domain.Repository
	ids        application.IDGenerator
	log        observability.Logger
}

func NewPlacer(
	normalizer CartNormalizer,
	reserver Reserver,
	repo domain.Repository,
	ids application.IDGenerator,
	tel observability.Observability,
) *Placer {
	return &Placer{
		normalizer: normalizer,
		reserver:   reserver,
		repo:       repo,
		ids:        ids,
		log:        observability.OrNop(tel).Logger().With(observability.F("component", "order-placer")),
	}
}

func (p *Placer) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	priced, err := p.normalizer.Normalize(ctx, in.Items, pricing.Options{GiftWrap: in.GiftWrap})
	if err != nil {
		return nil, err
	}
	if len(priced.Items) == 0 {
		return nil, application.NewValidation("at least one item is required")
	}

	reqs := make([]dominv.Request, len(priced.Items))
	for i, it := range priced.Items {
		reqs[i] = dominv.Request{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.Size, Color: it.Color}
	}
	reservation, err := p.reserver.Reserve(ctx, reqs)
	if err != nil {
		return nil, err
	}

	items := priced.Items
	for i, line := range reservation.Lines {
		items[i].Size, items[i].Color = line.Size, line.Color
	}

	entity, err := domain.New(p.ids.NewID(), in.Customer, items, in.ShippingAddress, priced.Pricing, in.Payment)
	if err != nil {
		p.compensate(ctx, reservation.Records, err)
		return nil, fmt.Errorf("order: construct: %w", err)
	}
	if err := p.repo.Insert(ctx, entity); err != nil {
		p.compensate(ctx, reservation.Records, err)
		return nil, fmt.Errorf("order: persist: %w", application.WrapRepository(err, domain.ErrConflict))
	}
	return entity, nil
}

func (p *Placer) compensate(ctx context.Context, records []dominv.Record, cause error) {
	logctx.FromOr(ctx, p.log).Warn("order_not_persisted_releasing_stock",
		observability.F("records", len(records)),
		observability.F("error", cause.Error()),
	)
	p.reserver.Release(context.WithoutCancel(ctx), records)
}
