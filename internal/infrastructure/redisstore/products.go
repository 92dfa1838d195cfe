package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

// ProductRepository keeps the product document as JSON and its stock counters in
// a separate hash so that conditional updates never rewrite the document.
type ProductRepository struct {
	client redis.UniversalClient
}

func NewProductRepository(client redis.UniversalClient) *ProductRepository {
	return &ProductRepository{client: client}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	raw, err := r.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, raw)
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]*catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	docs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*catalog.Product, 0, len(docs))
	for _, d := range docs {
		s, ok := d.(string)
		if !ok {
			continue // missing key
		}
		p, err := r.hydrate(ctx, []byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProductRepository) hydrate(ctx context.Context, raw []byte) (*catalog.Product, error) {
	var p catalog.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	counters, err := r.client.HGetAll(ctx, stockKey(p.ID)).Result()
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return &p, nil
	}
	p.Stock = atoi(counters[stockField])
	for i, b := range p.SizeBuckets {
		if v, ok := counters[sizeField(b.Size)]; ok {
			p.SizeBuckets[i].Pieces = atoi(v)
		}
	}
	return &p, nil
}

// Save replaces the document and resets the stock hash in one transaction.
func (r *ProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: id is required", catalog.ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: negative stock", catalog.ErrInvalidProduct)
	}

	c := p.Clone()
	c.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	counters := stockCounters(c)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, productKey(c.ID), doc, 0)
		pipe.Del(ctx, stockKey(c.ID))
		pipe.HSet(ctx, stockKey(c.ID), counters...)
		return nil
	})
	return err
}

// UpdateIf runs the guarded delta as a single server-side script.
func (r *ProductRepository) UpdateIf(ctx context.Context, productID string, pred inventory.Predicate, delta inventory.Delta) (int64, error) {
	return updateIfScript.Run(ctx, r.client, []string{stockKey(productID)}, updateIfArgs(pred, delta)...).Int64()
}

func updateIfArgs(pred inventory.Predicate, delta inventory.Delta) []any {
	return []any{
		pred.MinStock, sizeField(pred.Size), pred.MinPieces,
		delta.Stock, sizeField(delta.Size), delta.Pieces,
	}
}

func stockCounters(p *catalog.Product) []any {
	out := []any{stockField, p.Stock}
	for _, b := range p.SizeBuckets {
		out = append(out, sizeField(b.Size), b.Pieces)
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
