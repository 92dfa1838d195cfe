package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInvalidProduct  = errors.New("catalog: invalid product")
	ErrInvalidQuantity = errors.New("catalog: quantity must be a positive integer within stock")
	ErrInvalidSize     = errors.New("catalog: invalid size")
	ErrInvalidColor    = errors.New("catalog: invalid color")
)

// SizeBucket is the per-size share of a product's stock.
type SizeBucket struct {
	Size   string `json:"size"`
	Pieces int    `json:"pieces"`
}

// ColorImages groups image URLs under a color name.
type ColorImages struct {
	Color string   `json:"color"`
	URLs  []string `json:"urls"`
}

// Product is the catalog document as seen by checkout. Stock and SizeBuckets are
// only ever mutated through inventory.Store.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Sizes       []string        `json:"sizes,omitempty"`
	SizeBuckets []SizeBucket    `json:"size_buckets,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	ColorImages []ColorImages   `json:"color_images,omitempty"`
	Images      []string        `json:"images,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasSizes reports whether a size selection is mandatory for this product.
func (p *Product) HasSizes() bool {
	return len(p.Sizes) > 0 || len(p.SizeBuckets) > 0
}

// ResolveSize matches requested case-insensitively against the size vocabulary and
// the bucket labels, returning the canonical label. Only exact matches count.
func (p *Product) ResolveSize(requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", false
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(s, requested) {
			return s, true
		}
	}
	for _, b := range p.SizeBuckets {
		if strings.EqualFold(b.Size, requested) {
			return b.Size, true
		}
	}
	return "", false
}

// Bucket returns the size bucket for size, matched case-insensitively.
func (p *Product) Bucket(size string) (SizeBucket, bool) {
	if size == "" {
		return SizeBucket{}, false
	}
	for _, b := range p.SizeBuckets {
		if strings.EqualFold(b.Size, size) {
			return b, true
		}
	}
	return SizeBucket{}, false
}

// ColorNames is the union of the direct color list and the image group names.
func (p *Product) ColorNames() []string {
	names := make([]string, 0, len(p.Colors)+len(p.ColorImages))
	seen := make(map[string]struct{}, cap(names))
	add := func(c string) {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, c)
	}
	for _, c := range p.Colors {
		add(c)
	}
	for _, g := range p.ColorImages {
		add(g.Color)
	}
	return names
}

func (p *Product) HasColors() bool {
	return len(p.ColorNames()) > 0
}

// ResolveColor matches requested case-insensitively against ColorNames.
func (p *Product) ResolveColor(requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", false
	}
	for _, c := range p.ColorNames() {
		if strings.EqualFold(c, requested) {
			return c, true
		}
	}
	return "", false
}

// ImageFor picks the representative image for a line item: the first image of the
// matching color group, then the first product image.
func (p *Product) ImageFor(color string) string {
	if color != "" {
		for _, g := range p.ColorImages {
			if strings.EqualFold(g.Color, color) && len(g.URLs) > 0 {
				return g.URLs[0]
			}
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	for _, g := range p.ColorImages {
		if len(g.URLs) > 0 {
			return g.URLs[0]
		}
	}
	return ""
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Sizes = append([]string(nil), p.Sizes...)
	c.SizeBuckets = append([]SizeBucket(nil), p.SizeBuckets...)
	c.Colors = append([]string(nil), p.Colors...)
	c.Images = append([]string(nil), p.Images...)
	if p.ColorImages != nil {
		c.ColorImages = make([]ColorImages, len(p.ColorImages))
		for i, g := range p.ColorImages {
			c.ColorImages[i] = ColorImages{Color: g.Color, URLs: append([]string(nil), g.URLs...)}
		}
	}
	return &c
}

// Repository is the catalog read path plus the write used for seeding.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	// FindByIDs returns the products that exist; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]*Product, error)
	Save(ctx context.Context, p *Product) error
}
