package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	pricingService         = "pricing-service"
	useCaseNormalize       = "pricing.normalize"
	pricePlaces      int32 = 2
)

// Fees are the flat charges added on top of the line items.
type Fees struct {
	Shipping     decimal.Decimal
	GiftWrapUnit decimal.Decimal
	GiftWrapFlat decimal.Decimal
}

// Options carries cart-wide flags.
type Options struct {
	// GiftWrap is the legacy whole-cart flag, honored only when no line asks for wrapping.
	GiftWrap bool
}

type Result struct {
	Items   []order.LineItem
	Pricing order.Pricing
}

// Normalizer validates a cart against the catalog and computes authoritative
// prices. Stock checks here are advisory; the reservation is what decides.
type Normalizer struct {
	products catalog.Repository
	fees     Fees
	obs      application.Instruments
}

func NewNormalizer(products catalog.Repository, fees Fees, tel observability.Observability) *Normalizer {
	return &Normalizer{
		products: products,
		fees:     fees,
		obs:      application.NewInstruments(tel, pricingService),
	}
}

func (n *Normalizer) Normalize(ctx context.Context, items []order.CartItem, opts Options) (_ *Result, err error) {
	ctx, run := n.obs.Start(ctx, useCaseNormalize, "NormalizeCart",
		attribute.Int("cart.items", len(items)),
	)
	defer func() { run.End(err) }()

	byID, err := n.load(ctx, items)
	if err != nil {
		run.Fail("CATALOG_LOOKUP_FAILED")
		return nil, err
	}

	lines := make([]order.LineItem, 0, len(items))
	for i, it := range items {
		line, lerr := normalizeLine(it, byID[it.ProductID])
		if lerr != nil {
			run.Fail("CART_INVALID")
			run.Field(observability.F("failed_item", i))
			return nil, fmt.Errorf("pricing: item %d (%s): %w", i, it.ProductID, lerr)
		}
		lines = append(lines, line)
	}

	res := &Result{Items: lines, Pricing: n.price(lines, opts)}
	run.Span().SetAttributes(attribute.String("cart.total", res.Pricing.TotalPrice.StringFixed(pricePlaces)))
	return res, nil
}

// load fetches every referenced product in one round trip.
func (n *Normalizer) load(ctx context.Context, items []order.CartItem) (map[string]*catalog.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	byID := make(map[string]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	products, err := n.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, application.WrapRepository(err)
	}
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func normalizeLine(it order.CartItem, p *catalog.Product) (order.LineItem, error) {
	if p == nil {
		return order.LineItem{}, catalog.ErrInvalidProduct
	}
	if it.Quantity <= 0 || it.Quantity > p.Stock {
		return order.LineItem{}, fmt.Errorf("%w: %d requested, %d in stock", catalog.ErrInvalidQuantity, it.Quantity, p.Stock)
	}

	size := strings.TrimSpace(it.Size)
	if p.HasSizes() {
		resolved, ok := p.ResolveSize(size)
		if !ok {
			return order.LineItem{}, fmt.Errorf("%w: %q", catalog.ErrInvalidSize, it.Size)
		}
		size = resolved
	}

	color := strings.TrimSpace(it.Color)
	if p.HasColors() {
		resolved, ok := p.ResolveColor(color)
		if !ok {
			return order.LineItem{}, fmt.Errorf("%w: %q", catalog.ErrInvalidColor, it.Color)
		}
		color = resolved
	}

	return order.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.ImageFor(color),
		Price:     p.Price,
		Quantity:  it.Quantity,
		Size:      size,
		Color:     color,
		GiftWrap:  it.GiftWrap,
	}, nil
}

// price rounds half away from zero to two places.
func (n *Normalizer) price(lines []order.LineItem, opts Options) order.Pricing {
	items := decimal.Zero
	wrapped := 0
	for _, l := range lines {
		items = items.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		if l.GiftWrap {
			wrapped += l.Quantity
		}
	}
	items = items.Round(pricePlaces)

	shipping := decimal.Zero
	if len(lines) > 0 {
		shipping = n.fees.Shipping.Round(pricePlaces)
	}

	giftWrap := decimal.Zero
	switch {
	case wrapped > 0:
		giftWrap = n.fees.GiftWrapUnit.Mul(decimal.NewFromInt(int64(wrapped))).Round(pricePlaces)
	case opts.GiftWrap && len(lines) > 0:
		giftWrap = n.fees.GiftWrapFlat.Round(pricePlaces)
	}

	return order.Pricing{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		GiftWrapPrice: giftWrap,
		TotalPrice:    items.Add(shipping).Add(giftWrap).Round(pricePlaces),
	}
}
