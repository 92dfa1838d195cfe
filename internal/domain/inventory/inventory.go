package inventory

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
)

var (
	ErrInvalidQuantity    = catalog.ErrInvalidQuantity
	ErrInvalidSize        = catalog.ErrInvalidSize
	ErrProductUnavailable = errors.New("inventory: product unavailable")
	ErrInsufficientStock  = errors.New("inventory: insufficient stock")
)

// Request asks for quantity units of a product.
type Request struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// Line is a reserved request with its size and color resolved against the catalog.
type Line struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// Record is one applied stock decrement; it carries what is needed to undo it.
type Record struct {
	ProductID      string
	Quantity       int
	Size           string
	BucketAdjusted bool
}

// Reservation is the outcome of a fully applied batch.
type Reservation struct {
	Lines   []Line
	Records []Record
}

// Predicate guards a conditional stock update. Zero values impose no constraint.
// When Size is set and MinPieces > 0 the bucket must exist and hold MinPieces.
type Predicate struct {
	MinStock  int
	Size      string
	MinPieces int
}

// Delta is applied when the predicate holds. The bucket named by Size is adjusted
// only when it exists; stock never goes below zero.
type Delta struct {
	Stock  int
	Size   string
	Pieces int
}

// Store is the single-document compare-and-swap primitive on product stock.
// UpdateIf returns 1 when the product exists and the predicate held, 0 otherwise.
type Store interface {
	UpdateIf(ctx context.Context, productID string, pred Predicate, delta Delta) (int64, error)
}

// Decrement builds the guarded decrement for quantity units, optionally from a bucket.
func Decrement(quantity int, bucket string) (Predicate, Delta) {
	pred := Predicate{MinStock: quantity}
	delta := Delta{Stock: -quantity}
	if bucket != "" {
		pred.Size, pred.MinPieces = bucket, quantity
		delta.Size, delta.Pieces = bucket, -quantity
	}
	return pred, delta
}

// Increment builds the unconditional restore of quantity units.
func Increment(quantity int, size string) (Predicate, Delta) {
	delta := Delta{Stock: quantity}
	if size != "" {
		delta.Size, delta.Pieces = size, quantity
	}
	return Predicate{}, delta
}
