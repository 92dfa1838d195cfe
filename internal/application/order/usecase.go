package order

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"

	paymentStatusPending = "pending"
)

type CreateOrderInput struct {
	Customer        domain.Customer
	Items           []domain.CartItem
	ShippingAddress domain.Address
	GiftWrap        bool
	PaymentMethod   string
}

// CreateOrderUseCase places a cash-on-delivery order.
type CreateOrderUseCase struct {
	placer    *Placer
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewCreateOrderUseCase(placer *Placer, publisher domoutbox.Publisher, tel observability.Observability) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		placer:    placer,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.customer_id", cmd.Customer.ID),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { run.End(err) }()

	if cmd.Customer.ID == "" {
		run.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	}
	if len(cmd.Items) == 0 {
		run.Fail("ITEMS_REQUIRED")
		return nil, application.NewValidation("at least one item is required")
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	method := strings.TrimSpace(cmd.PaymentMethod)
	if method == "" {
		method = domain.ProviderCOD
	}
	entity, err := uc.placer.Place(ctx, PlaceInput{
		Customer:        cmd.Customer,
		Items:           cmd.Items,
		ShippingAddress: cmd.ShippingAddress,
		GiftWrap:        cmd.GiftWrap,
		Payment: domain.PaymentInfo{
			Provider: domain.ProviderCOD,
			Status:   paymentStatusPending,
			Method:   method,
		},
	})
	if err != nil {
		run.Fail(application.StatusFor(err))
		return nil, err
	}

	if perr := uc.obs.Publish(ctx, uc.publisher, domain.NewOrderPlacedEvent(entity)); perr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.Field(observability.F("event_publish_error", perr.Error()))
	}

	run.Field(observability.F("order_id", entity.ID))
	run.Span().SetAttributes(attribute.String("order.status", string(entity.Status)))
	run.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", entity.ID)))
	return entity, nil
}
