package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService         = "payment-service"
	useCaseCheckoutOpen    = "payment.open_checkout"
	useCasePaymentVerify   = "payment.verify"
	gatewayPeer            = "payment-gateway"
	endpointCreateOrder    = "orders.create"
	endpointFetchPayment   = "payments.fetch"
	minorUnitPlaces        = 2
	defaultCheckoutTimeout = 30 * time.Minute
)

type OpenCheckoutInput struct {
	Customer        domorder.Customer
	Items           []domorder.CartItem
	ShippingAddress domorder.Address
	GiftWrap        bool
}

type OpenCheckoutResult struct {
	GatewayOrderID string
	Amount         int64
	Currency       string
	Pricing        domorder.Pricing
	ExpiresAt      time.Time
}

// OpenCheckoutUseCase prices a cart, opens a gateway order for the total and parks
// the cart until the payment comes back.
type OpenCheckoutUseCase struct {
	normalizer apporder.CartNormalizer
	gateway    dompay.Gateway
	checkouts  dompay.CheckoutRepository
	ids        application.IDGenerator
	currency   string
	ttl        time.Duration
	obs        application.Instruments
}

func NewOpenCheckoutUseCase(
	normalizer apporder.CartNormalizer,
	gateway dompay.Gateway,
	checkouts dompay.CheckoutRepository,
	ids application.IDGenerator,
	currency string,
	ttl time.Duration,
	tel observability.Observability,
) *OpenCheckoutUseCase {
	if ttl <= 0 {
		ttl = defaultCheckoutTimeout
	}
	return &OpenCheckoutUseCase{
		normalizer: normalizer,
		gateway:    gateway,
		checkouts:  checkouts,
		ids:        ids,
		currency:   currency,
		ttl:        ttl,
		obs:        application.NewInstruments(tel, paymentService),
	}
}

func (uc *OpenCheckoutUseCase) Execute(ctx context.Context, cmd OpenCheckoutInput) (_ *OpenCheckoutResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCaseCheckoutOpen, "OpenCheckout",
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

	priced, err := uc.normalizer.Normalize(ctx, cmd.Items, pricing.Options{GiftWrap: cmd.GiftWrap})
	if err != nil {
		run.Fail(application.StatusFor(err))
		return nil, err
	}
	amount := priced.Pricing.TotalPrice.Shift(minorUnitPlaces).Round(0).IntPart()

	var gwOrder *dompay.GatewayOrder
	err = uc.obs.External(ctx, gatewayPeer, endpointCreateOrder, func(ctx context.Context) error {
		var gerr error
		gwOrder, gerr = uc.gateway.CreateOrder(ctx, amount, uc.currency, uc.ids.NewID(), map[string]string{
			"user_id": cmd.Customer.ID,
		})
		return gerr
	})
	if err != nil {
		if !errors.Is(err, dompay.ErrGateway) {
			err = fmt.Errorf("%w: %w", dompay.ErrGateway, err)
		}
		run.Fail("GATEWAY_FAILED")
		return nil, err
	}

	now := time.Now().UTC()
	pending := &dompay.PendingCheckout{
		GatewayOrderID:  gwOrder.ID,
		Customer:        cmd.Customer,
		Items:           cmd.Items,
		ShippingAddress: cmd.ShippingAddress,
		GiftWrap:        cmd.GiftWrap,
		Pricing:         priced.Pricing,
		Amount:          amount,
		Currency:        uc.currency,
		CreatedAt:       now,
	}
	if err = uc.checkouts.Save(ctx, pending, uc.ttl); err != nil {
		run.Fail("CHECKOUT_SAVE_FAILED")
		return nil, application.WrapRepository(err)
	}

	run.Field(observability.F("gateway_order_id", gwOrder.ID))
	return &OpenCheckoutResult{
		GatewayOrderID: gwOrder.ID,
		Amount:         amount,
		Currency:       uc.currency,
		Pricing:        priced.Pricing,
		ExpiresAt:      now.Add(uc.ttl),
	}, nil
}

type VerifyPaymentInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type VerifyPaymentResult struct {
	Order *domorder.Order
	// Replayed is set when the payment had already produced this order.
	Replayed bool
}

// VerifyPaymentUseCase consumes a gateway payment at most once. Concurrent calls
// for the same payment id share one execution; later calls find the order by its
// payment id and return it untouched.
type VerifyPaymentUseCase struct {
	secret    string
	gateway   dompay.Gateway
	checkouts dompay.CheckoutRepository
	orders    domorder.Repository
	placer    *apporder.Placer
	publisher domoutbox.Publisher
	group     singleflight.Group
	obs       application.Instruments
}

func NewVerifyPaymentUseCase(
	secret string,
	gateway dompay.Gateway,
	checkouts dompay.CheckoutRepository,
	orders domorder.Repository,
	placer *apporder.Placer,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *VerifyPaymentUseCase {
	return &VerifyPaymentUseCase{
		secret:    secret,
		gateway:   gateway,
		checkouts: checkouts,
		orders:    orders,
		placer:    placer,
		publisher: publisher,
		obs:       application.NewInstruments(tel, paymentService),
	}
}

func (uc *VerifyPaymentUseCase) Execute(ctx context.Context, cmd VerifyPaymentInput) (_ *VerifyPaymentResult, err error) {
	ctx, run := uc.obs.Start(ctx, useCasePaymentVerify, "VerifyPayment",
		attribute.String("payment.gateway_order_id", cmd.GatewayOrderID),
		attribute.String("payment.id", cmd.PaymentID),
	)
	defer func() { run.End(err) }()

	if cmd.GatewayOrderID == "" || cmd.PaymentID == "" || cmd.Signature == "" {
		run.Fail("PAYMENT_FIELDS_REQUIRED")
		return nil, application.NewValidation("gateway order id, payment id and signature are required")
	}
	if err = dompay.VerifySignature(uc.secret, cmd.GatewayOrderID, cmd.PaymentID, cmd.Signature); err != nil {
		run.Fail("SIGNATURE_MISMATCH")
		return nil, err
	}

	leader := false
	v, err, shared := uc.group.Do(cmd.PaymentID, func() (any, error) {
		leader = true
		return uc.consume(context.WithoutCancel(ctx), run, cmd)
	})
	if err != nil {
		run.Fail(application.StatusFor(err))
		return nil, err
	}
	res := v.(*VerifyPaymentResult)
	if shared && !leader {
		res = &VerifyPaymentResult{Order: res.Order.Clone(), Replayed: true}
	}

	if res.Replayed {
		run.Status("IDEMPOTENT_REPLAY")
		run.Span().AddEvent("order.idempotent_replay",
			trace.WithAttributes(attribute.String("order.id", res.Order.ID)),
		)
	}
	run.Field(observability.F("order_id", res.Order.ID))
	return res, nil
}

func (uc *VerifyPaymentUseCase) consume(ctx context.Context, run *application.Run, cmd VerifyPaymentInput) (*VerifyPaymentResult, error) {
	existing, err := uc.orders.FindByPaymentID(ctx, cmd.PaymentID)
	switch {
	case err == nil:
		return &VerifyPaymentResult{Order: existing, Replayed: true}, nil
	case errors.Is(err, domorder.ErrNotFound):
	default:
		return nil, application.WrapRepository(err)
	}

	var pay *dompay.Payment
	err = uc.obs.External(ctx, gatewayPeer, endpointFetchPayment, func(ctx context.Context) error {
		var gerr error
		pay, gerr = uc.gateway.FetchPayment(ctx, cmd.PaymentID)
		return gerr
	})
	if err != nil {
		if !errors.Is(err, dompay.ErrGateway) {
			err = fmt.Errorf("%w: %w", dompay.ErrGateway, err)
		}
		return nil, err
	}
	if !pay.Status.Successful() {
		return nil, fmt.Errorf("%w: status %s", dompay.ErrPaymentNotSuccessful, pay.Status)
	}
	if pay.OrderID != "" && pay.OrderID != cmd.GatewayOrderID {
		return nil, fmt.Errorf("%w: payment belongs to gateway order %s", dompay.ErrSignatureMismatch, pay.OrderID)
	}

	pending, err := uc.checkouts.Get(ctx, cmd.GatewayOrderID)
	if err != nil {
		return nil, application.WrapRepository(err, dompay.ErrCheckoutNotFound)
	}

	entity, err := uc.placer.Place(ctx, apporder.PlaceInput{
		Customer:        pending.Customer,
		Items:           pending.Items,
		ShippingAddress: pending.ShippingAddress,
		GiftWrap:        pending.GiftWrap,
		Payment: domorder.PaymentInfo{
			ExternalPaymentID: cmd.PaymentID,
			GatewayOrderID:    cmd.GatewayOrderID,
			Status:            string(pay.Status),
			Provider:          domorder.ProviderGateway,
			Method:            pay.Method,
			Signature:         cmd.Signature,
		},
	})
	if errors.Is(err, domorder.ErrConflict) {
		// Another instance consumed this payment between the lookup and the insert.
		if existing, lerr := uc.orders.FindByPaymentID(ctx, cmd.PaymentID); lerr == nil {
			return &VerifyPaymentResult{Order: existing, Replayed: true}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	logger := run.Logger()
	if !entity.Pricing.TotalPrice.Equal(pending.Pricing.TotalPrice) {
		logger.Warn("checkout_price_drift",
			observability.F("order_id", entity.ID),
			observability.F("paid_total", pending.Pricing.TotalPrice.String()),
			observability.F("order_total", entity.Pricing.TotalPrice.String()),
		)
	}
	if derr := uc.checkouts.Delete(ctx, cmd.GatewayOrderID); derr != nil {
		logger.Warn("checkout_cleanup_failed",
			observability.F("gateway_order_id", cmd.GatewayOrderID),
			observability.F("error", derr.Error()),
		)
	}
	if perr := uc.obs.Publish(ctx, uc.publisher, domorder.NewOrderPlacedEvent(entity)); perr != nil {
		run.Field(observability.F("event_publish_error", perr.Error()))
	}
	return &VerifyPaymentResult{Order: entity}, nil
}
