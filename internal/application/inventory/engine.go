package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService = "inventory-service"
	useCaseReserve   = "inventory.reserve"
	useCaseRelease   = "inventory.release"
	storePeer        = "store"
	endpointUpdateIf = "product.update_if"

	opReserve  = "reserve"
	opRelease  = "release"
	opRollback = "rollback"
)

// Engine reserves and releases product stock. A batch is applied item by item
// through the store's conditional update; a failure part-way compensates the
// items already applied, newest first, before the error is returned.
type Engine struct {
	products    catalog.Repository
	store       dominv.Store
	obs         application.Instruments
	adjustments observability.Counter // inventory_adjustments_total{op,outcome}
}

func NewEngine(products catalog.Repository, store dominv.Store, tel observability.Observability) *Engine {
	tel = observability.OrNop(tel)
	return &Engine{
		products:    products,
		store:       store,
		obs:         application.NewInstruments(tel, inventoryService),
		adjustments: tel.Metrics().Counter(observability.MInventoryAdjustments),
	}
}

// Reserve returns a reservation only when every request was applied.
func (e *Engine) Reserve(ctx context.Context, reqs []dominv.Request) (_ *dominv.Reservation, err error) {
	ctx, run := e.obs.Start(ctx, useCaseReserve, "ReserveInventory",
		attribute.Int("inventory.items", len(reqs)),
	)
	defer func() { run.End(err) }()

	if len(reqs) == 0 {
		run.Fail("ITEMS_REQUIRED")
		return nil, application.NewValidation("at least one item is required")
	}

	res := &dominv.Reservation{
		Lines:   make([]dominv.Line, 0, len(reqs)),
		Records: make([]dominv.Record, 0, len(reqs)),
	}
	for i, req := range reqs {
		line, rec, rerr := e.reserveOne(ctx, req)
		if rerr != nil {
			run.Fail(statusFor(rerr))
			run.Field(observability.F("failed_item", i))
			if len(res.Records) > 0 {
				run.Field(observability.F("rolled_back", len(res.Records)))
				run.Span().AddEvent("inventory.rollback",
					trace.WithAttributes(attribute.Int("inventory.records", len(res.Records))),
				)
				e.release(context.WithoutCancel(ctx), res.Records, opRollback)
			}
			return nil, fmt.Errorf("inventory: item %d (%s): %w", i, req.ProductID, rerr)
		}
		res.Lines = append(res.Lines, line)
		res.Records = append(res.Records, rec)
	}

	run.Span().AddEvent("inventory.reserved",
		trace.WithAttributes(attribute.Int("inventory.records", len(res.Records))),
	)
	return res, nil
}

func (e *Engine) reserveOne(ctx context.Context, req dominv.Request) (dominv.Line, dominv.Record, error) {
	if req.Quantity <= 0 {
		return dominv.Line{}, dominv.Record{}, dominv.ErrInvalidQuantity
	}

	p, err := e.products.FindByID(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		return dominv.Line{}, dominv.Record{}, dominv.ErrProductUnavailable
	}
	if err != nil {
		return dominv.Line{}, dominv.Record{}, application.WrapRepository(err)
	}

	size := req.Size
	if p.HasSizes() {
		resolved, ok := p.ResolveSize(req.Size)
		if !ok {
			return dominv.Line{}, dominv.Record{}, fmt.Errorf("%w: %q", dominv.ErrInvalidSize, req.Size)
		}
		size = resolved
	}
	color := req.Color
	if resolved, ok := p.ResolveColor(req.Color); ok {
		color = resolved
	}

	bucket := ""
	if b, ok := p.Bucket(size); ok {
		bucket = b.Size
	}
	pred, delta := dominv.Decrement(req.Quantity, bucket)

	var modified int64
	err = e.obs.External(ctx, storePeer, endpointUpdateIf, func(ctx context.Context) error {
		var uerr error
		modified, uerr = e.store.UpdateIf(ctx, p.ID, pred, delta)
		return uerr
	})
	if err != nil {
		e.count(opReserve, "error")
		return dominv.Line{}, dominv.Record{}, application.WrapRepository(err)
	}
	if modified == 0 {
		e.count(opReserve, "rejected")
		return dominv.Line{}, dominv.Record{}, dominv.ErrInsufficientStock
	}
	e.count(opReserve, "success")

	line := dominv.Line{ProductID: p.ID, Quantity: req.Quantity, Size: size, Color: color}
	rec := dominv.Record{ProductID: p.ID, Quantity: req.Quantity, Size: size, BucketAdjusted: bucket != ""}
	return line, rec, nil
}

// Release gives stock back. Store errors are logged and counted, never returned.
func (e *Engine) Release(ctx context.Context, records []dominv.Record) {
	if len(records) == 0 {
		return
	}
	ctx, run := e.obs.Start(ctx, useCaseRelease, "ReleaseInventory",
		attribute.Int("inventory.records", len(records)),
	)
	defer run.End(nil)

	if failed := e.release(ctx, records, opRelease); failed > 0 {
		run.Status("PARTIAL_RELEASE")
		run.Field(observability.F("failed_records", failed))
	}
}

// release walks records newest first and reports how many could not be restored.
func (e *Engine) release(ctx context.Context, records []dominv.Record, op string) int {
	logger := e.obs.Logger(ctx)
	failed := 0
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Quantity <= 0 {
			continue
		}
		pred, delta := dominv.Increment(rec.Quantity, rec.Size)

		var modified int64
		err := e.obs.External(ctx, storePeer, endpointUpdateIf, func(ctx context.Context) error {
			var uerr error
			modified, uerr = e.store.UpdateIf(ctx, rec.ProductID, pred, delta)
			return uerr
		})
		switch {
		case err != nil:
			failed++
			e.count(op, "error")
			logger.Error("inventory_release_failed",
				observability.F("op", op),
				observability.F("product_id", rec.ProductID),
				observability.F("quantity", rec.Quantity),
				observability.F("size", rec.Size),
				observability.F("error", err.Error()),
			)
		case modified == 0:
			failed++
			e.count(op, "missing")
			logger.Warn("inventory_release_target_missing",
				observability.F("op", op),
				observability.F("product_id", rec.ProductID),
				observability.F("quantity", rec.Quantity),
			)
		default:
			e.count(op, "success")
		}
	}
	return failed
}

func (e *Engine) count(op, outcome string) {
	e.adjustments.Add(1,
		observability.L("op", op),
		observability.L("outcome", outcome),
	)
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return "QUANTITY_INVALID"
	case errors.Is(err, dominv.ErrProductUnavailable):
		return "PRODUCT_UNAVAILABLE"
	case errors.Is(err, dominv.ErrInvalidSize):
		return "SIZE_INVALID"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	default:
		return "STORE_FAILED"
	}
}
