package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseOrderGet          = "order.get"
	useCaseOrderUpdateStatus = "order.update_status"
	useCaseOrderCancel       = "order.cancel"
	useCaseOrderDelete       = "order.delete"
)

type GetOrderInput struct {
	Actor   domain.Actor
	OrderID string
}

type GetOrderUseCase struct {
	repo domain.Repository
	obs  application.Instruments
}

func NewGetOrderUseCase(repo domain.Repository, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{repo: repo, obs: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	o, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		err = application.WrapRepository(err, domain.ErrNotFound)
		run.Fail(application.StatusFor(err))
		return nil, err
	}
	if !o.AccessibleBy(cmd.Actor) {
		run.Fail("FORBIDDEN")
		return nil, domain.ErrForbidden
	}
	return o, nil
}

type UpdateStatusInput struct {
	Actor   domain.Actor
	OrderID string
	Target  domain.Status
}

type CancelOrderInput struct {
	Actor   domain.Actor
	OrderID string
}

// lifecycle applies a state machine transition and its side effects. The write is
// guarded by the status the transition was computed from, so compensation runs at
// most once even when two requests race.
type lifecycle struct {
	repo      domain.Repository
	reserver  Reserver
	publisher domoutbox.Publisher
	obs       application.Instruments
	now       func() time.Time
}

func newLifecycle(repo domain.Repository, reserver Reserver, publisher domoutbox.Publisher, tel observability.Observability) *lifecycle {
	return &lifecycle{
		repo:      repo,
		reserver:  reserver,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *lifecycle) transition(ctx context.Context, useCase, name string, cmd UpdateStatusInput) (_ *domain.Order, err error) {
	ctx, run := l.obs.Start(ctx, useCase, name,
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target_status", string(cmd.Target)),
	)
	defer func() { run.End(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}

	o, err := l.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		err = application.WrapRepository(err, domain.ErrNotFound)
		run.Fail(application.StatusFor(err))
		return nil, err
	}
	if !o.AccessibleBy(cmd.Actor) || (!cmd.Actor.IsAdmin() && cmd.Target != domain.StatusCancelled) {
		run.Fail("FORBIDDEN")
		return nil, domain.ErrForbidden
	}

	expected := o.Status
	tr, err := o.TransitionTo(cmd.Target, l.now())
	if err != nil {
		run.Fail(application.StatusFor(err))
		return nil, err
	}
	if err = l.repo.UpdateIf(ctx, o, expected); err != nil {
		err = application.WrapRepository(err, domain.ErrConflict, domain.ErrNotFound)
		run.Fail(application.StatusFor(err))
		return nil, fmt.Errorf("order: update status: %w", err)
	}

	if len(tr.Release) > 0 {
		l.reserver.Release(context.WithoutCancel(ctx), tr.Release)
		run.Field(observability.F("released_records", len(tr.Release)))
		run.Span().AddEvent("inventory.released",
			trace.WithAttributes(attribute.Int("inventory.records", len(tr.Release))),
		)
	}

	if tr.From != tr.To {
		if perr := l.obs.Publish(ctx, l.publisher, domain.NewOrderStatusChangedEvent(o, tr.From)); perr != nil {
			run.Status("EVENT_PUBLISH_FAILED")
			run.Field(observability.F("event_publish_error", perr.Error()))
		}
	}

	run.Field(observability.F("from_status", string(tr.From)))
	run.Field(observability.F("to_status", string(tr.To)))
	return o, nil
}

// UpdateStatusUseCase lets an admin move an order through the lifecycle; owners
// may only cancel.
type UpdateStatusUseCase struct {
	lc *lifecycle
}

func NewUpdateStatusUseCase(repo domain.Repository, reserver Reserver, publisher domoutbox.Publisher, tel observability.Observability) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{lc: newLifecycle(repo, reserver, publisher, tel)}
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (*domain.Order, error) {
	return uc.lc.transition(ctx, useCaseOrderUpdateStatus, "UpdateOrderStatus", cmd)
}

type CancelOrderUseCase struct {
	lc *lifecycle
}

func NewCancelOrderUseCase(repo domain.Repository, reserver Reserver, publisher domoutbox.Publisher, tel observability.Observability) *CancelOrderUseCase {
	return &CancelOrderUseCase{lc: newLifecycle(repo, reserver, publisher, tel)}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (*domain.Order, error) {
	return uc.lc.transition(ctx, useCaseOrderCancel, "CancelOrder", UpdateStatusInput{
		Actor:   cmd.Actor,
		OrderID: cmd.OrderID,
		Target:  domain.StatusCancelled,
	})
}

type DeleteOrderInput struct {
	Actor   domain.Actor
	OrderID string
}

// DeleteOrderUseCase removes delivered orders. Admin only.
type DeleteOrderUseCase struct {
	repo domain.Repository
	obs  application.Instruments
}

func NewDeleteOrderUseCase(repo domain.Repository, tel observability.Observability) *DeleteOrderUseCase {
	return &DeleteOrderUseCase{repo: repo, obs: application.NewInstruments(tel, orderService)}
}

func (uc *DeleteOrderUseCase) Execute(ctx context.Context, cmd DeleteOrderInput) (_ struct{}, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderDelete, "DeleteOrder", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return struct{}{}, application.NewValidation("order id is required")
	}
	if !cmd.Actor.IsAdmin() {
		run.Fail("FORBIDDEN")
		return struct{}{}, domain.ErrForbidden
	}

	o, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		err = application.WrapRepository(err, domain.ErrNotFound)
		run.Fail(application.StatusFor(err))
		return struct{}{}, err
	}
	if err = o.CanDelete(); err != nil {
		run.Fail("NOT_DELETABLE")
		return struct{}{}, err
	}
	if err = uc.repo.Delete(ctx, o.ID); err != nil {
		err = application.WrapRepository(err, domain.ErrNotFound)
		run.Fail(application.StatusFor(err))
		return struct{}{}, err
	}
	return struct{}{}, nil
}
