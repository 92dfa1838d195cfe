package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

// ProductRepository keeps catalog documents in process. It serves both the catalog
// read path and the conditional stock update.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*catalog.Product),
	}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]*catalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *ProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: id is required", catalog.ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: negative stock", catalog.ErrInvalidProduct)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := p.Clone()
	c.UpdatedAt = time.Now().UTC()
	r.products[p.ID] = c
	return nil
}

// UpdateIf applies delta when pred holds, all under one lock.
func (r *ProductRepository) UpdateIf(ctx context.Context, productID string, pred inventory.Predicate, delta inventory.Delta) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, nil
	}
	if p.Stock < pred.MinStock {
		return 0, nil
	}
	if pred.Size != "" && pred.MinPieces > 0 {
		i := bucketIndex(p, pred.Size)
		if i < 0 || p.SizeBuckets[i].Pieces < pred.MinPieces {
			return 0, nil
		}
	}

	stock := p.Stock + delta.Stock
	if stock < 0 {
		return 0, nil
	}
	bi := -1
	if delta.Size != "" {
		bi = bucketIndex(p, delta.Size)
		if bi >= 0 && p.SizeBuckets[bi].Pieces+delta.Pieces < 0 {
			return 0, nil
		}
	}

	p.Stock = stock
	if bi >= 0 {
		p.SizeBuckets[bi].Pieces += delta.Pieces
	}
	p.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func bucketIndex(p *catalog.Product, size string) int {
	for i, b := range p.SizeBuckets {
		if strings.EqualFold(b.Size, size) {
			return i
		}
	}
	return -1
}
