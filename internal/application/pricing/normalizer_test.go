package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
)

type countingCatalog struct {
	catalog.Repository
	batches int
	err     error
}

func (c *countingCatalog) FindByIDs(ctx context.Context, ids []string) ([]*catalog.Product, error) {
	c.batches++
	if c.err != nil {
		return nil, c.err
	}
	return c.Repository.FindByIDs(ctx, ids)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testFees = Fees{Shipping: dec("50"), GiftWrapUnit: dec("30"), GiftWrapFlat: dec("30")}

func newNormalizer(t *testing.T) (*Normalizer, *countingCatalog) {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewProductRepository()
	for _, p := range []*catalog.Product{
		{ID: "tee", Name: "Tee", Price: dec("199.99"), Stock: 10, Images: []string{"tee.jpg"}},
		{ID: "shirt", Name: "Shirt", Price: dec("0.125"), Stock: 3,
			Sizes:       []string{"S", "M"},
			ColorImages: []catalog.ColorImages{{Color: "Navy", URLs: []string{"navy.jpg"}}}},
	} {
		require.NoError(t, repo.Save(ctx, p))
	}
	cat := &countingCatalog{Repository: repo}
	return NewNormalizer(cat, testFees, nil), cat
}

func TestNormalizeSnapshotsLines(t *testing.T) {
	n, cat := newNormalizer(t)

	res, err := n.Normalize(context.Background(), []order.CartItem{
		{ProductID: "tee", Quantity: 2},
		{ProductID: "shirt", Quantity: 1, Size: "m", Color: "NAVY"},
		{ProductID: "tee", Quantity: 1},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.batches, "products are fetched in one batch")

	require.Len(t, res.Items, 3)
	assert.Equal(t, "Tee", res.Items[0].Name)
	assert.Equal(t, "tee.jpg", res.Items[0].Image)
	assert.Equal(t, "M", res.Items[1].Size)
	assert.Equal(t, "Navy", res.Items[1].Color)
	assert.Equal(t, "navy.jpg", res.Items[1].Image)

	// 3 x 199.99 + 0.125 = 600.095 -> 600.10
	assert.Equal(t, "600.10", res.Pricing.ItemsPrice.StringFixed(2))
	assert.Equal(t, "50.00", res.Pricing.ShippingPrice.StringFixed(2))
	assert.True(t, res.Pricing.GiftWrapPrice.IsZero())
	assert.Equal(t, "650.10", res.Pricing.TotalPrice.StringFixed(2))
}

func TestGiftWrapPricing(t *testing.T) {
	n, _ := newNormalizer(t)
	ctx := context.Background()

	perUnit, err := n.Normalize(ctx, []order.CartItem{
		{ProductID: "tee", Quantity: 2, GiftWrap: true},
		{ProductID: "tee", Quantity: 1},
	}, Options{GiftWrap: true})
	require.NoError(t, err)
	assert.Equal(t, "60.00", perUnit.Pricing.GiftWrapPrice.StringFixed(2), "per-unit flags win over the legacy flag")

	legacy, err := n.Normalize(ctx, []order.CartItem{{ProductID: "tee", Quantity: 2}}, Options{GiftWrap: true})
	require.NoError(t, err)
	assert.Equal(t, "30.00", legacy.Pricing.GiftWrapPrice.StringFixed(2))
	assert.Equal(t, "479.98", legacy.Pricing.TotalPrice.StringFixed(2))
}

func TestEmptyCartHasNoFees(t *testing.T) {
	n, cat := newNormalizer(t)

	res, err := n.Normalize(context.Background(), nil, Options{GiftWrap: true})
	require.NoError(t, err)
	assert.Equal(t, 0, cat.batches)
	assert.True(t, res.Pricing.ShippingPrice.IsZero())
	assert.True(t, res.Pricing.GiftWrapPrice.IsZero())
	assert.True(t, res.Pricing.TotalPrice.IsZero())
}

func TestNormalizeValidation(t *testing.T) {
	cases := []struct {
		name string
		item order.CartItem
		want error
	}{
		{"unknown product", order.CartItem{ProductID: "nope", Quantity: 1}, catalog.ErrInvalidProduct},
		{"missing product id", order.CartItem{Quantity: 1}, catalog.ErrInvalidProduct},
		{"zero quantity", order.CartItem{ProductID: "tee", Quantity: 0}, catalog.ErrInvalidQuantity},
		{"negative quantity", order.CartItem{ProductID: "tee", Quantity: -2}, catalog.ErrInvalidQuantity},
		{"beyond stock", order.CartItem{ProductID: "shirt", Quantity: 4, Size: "S", Color: "Navy"}, catalog.ErrInvalidQuantity},
		{"size required", order.CartItem{ProductID: "shirt", Quantity: 1, Color: "Navy"}, catalog.ErrInvalidSize},
		{"size prefix", order.CartItem{ProductID: "shirt", Quantity: 1, Size: "Sm", Color: "Navy"}, catalog.ErrInvalidSize},
		{"color required", order.CartItem{ProductID: "shirt", Quantity: 1, Size: "S"}, catalog.ErrInvalidColor},
		{"color unknown", order.CartItem{ProductID: "shirt", Quantity: 1, Size: "S", Color: "Red"}, catalog.ErrInvalidColor},
	}
	n, _ := newNormalizer(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(context.Background(), []order.CartItem{tc.item}, Options{})
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnsizedProductKeepsCallerSize(t *testing.T) {
	n, _ := newNormalizer(t)
	res, err := n.Normalize(context.Background(), []order.CartItem{{ProductID: "tee", Quantity: 1, Size: "free"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "free", res.Items[0].Size)
}

func TestCatalogErrorIsRepositoryFailure(t *testing.T) {
	n, cat := newNormalizer(t)
	cat.err = errors.New("down")
	_, err := n.Normalize(context.Background(), []order.CartItem{{ProductID: "tee", Quantity: 1}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
