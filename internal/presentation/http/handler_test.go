package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domainCatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domainInventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type useCaseFunc[C, R any] func(context.Context, C) (R, error)

func (f useCaseFunc[C, R]) Execute(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }

type labelCounter struct {
	mu   sync.Mutex
	seen []string
}

func (c *labelCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Key + "=" + l.Value
	}
	c.seen = append(c.seen, strings.Join(parts, ","))
}

func sampleOrder(status domainOrder.Status) *domainOrder.Order {
	return &domainOrder.Order{
		ID:       "o-1",
		Customer: domainOrder.Customer{ID: "u-1"},
		Status:   status,
		Pricing:  domainOrder.Pricing{TotalPrice: decimal.NewFromInt(450)},
	}
}

type HandlerSuite struct {
	suite.Suite
	uc       UseCases
	recorder *tracetest.SpanRecorder
	requests *labelCounter
	server   *httptest.Server

	created  appOrder.CreateOrderInput
	verified appPayment.VerifyPaymentInput
	updated  appOrder.UpdateStatusInput
}

func (s *HandlerSuite) SetupTest() {
	s.recorder = tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})

	s.requests = &labelCounter{}
	tel := infraobs.New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MHTTPRequests: s.requests,
	}, nil)

	s.uc = UseCases{
		CreateOrder: useCaseFunc[appOrder.CreateOrderInput, *domainOrder.Order](func(_ context.Context, in appOrder.CreateOrderInput) (*domainOrder.Order, error) {
			s.created = in
			if len(in.Items) == 0 {
				return nil, application.NewValidation("at least one item is required")
			}
			if in.Items[0].ProductID == "sold-out" {
				return nil, fmt.Errorf("inventory: item 0 (sold-out): %w", domainInventory.ErrInsufficientStock)
			}
			return sampleOrder(domainOrder.StatusProcessing), nil
		}),
		GetOrder: useCaseFunc[appOrder.GetOrderInput, *domainOrder.Order](func(_ context.Context, in appOrder.GetOrderInput) (*domainOrder.Order, error) {
			switch in.OrderID {
			case "o-1":
				if in.Actor.UserID != "u-1" && !in.Actor.IsAdmin() {
					return nil, domainOrder.ErrForbidden
				}
				return sampleOrder(domainOrder.StatusProcessing), nil
			case "boom":
				return nil, fmt.Errorf("%w: connection refused", application.ErrRepository)
			}
			return nil, domainOrder.ErrNotFound
		}),
		CancelOrder: useCaseFunc[appOrder.CancelOrderInput, *domainOrder.Order](func(_ context.Context, in appOrder.CancelOrderInput) (*domainOrder.Order, error) {
			if in.OrderID == "done" {
				return nil, fmt.Errorf("%w: Delivered -> Cancelled", domainOrder.ErrInvalidStateTransition)
			}
			return sampleOrder(domainOrder.StatusCancelled), nil
		}),
		UpdateStatus: useCaseFunc[appOrder.UpdateStatusInput, *domainOrder.Order](func(_ context.Context, in appOrder.UpdateStatusInput) (*domainOrder.Order, error) {
			s.updated = in
			return sampleOrder(in.Target), nil
		}),
		DeleteOrder: useCaseFunc[appOrder.DeleteOrderInput, struct{}](func(_ context.Context, in appOrder.DeleteOrderInput) (struct{}, error) {
			if !in.Actor.IsAdmin() {
				return struct{}{}, domainOrder.ErrForbidden
			}
			return struct{}{}, nil
		}),
		OpenCheckout: useCaseFunc[appPayment.OpenCheckoutInput, *appPayment.OpenCheckoutResult](func(_ context.Context, in appPayment.OpenCheckoutInput) (*appPayment.OpenCheckoutResult, error) {
			if in.Items[0].ProductID == "gone" {
				return nil, domainCatalog.ErrInvalidProduct
			}
			if in.Items[0].ProductID == "offline" {
				return nil, fmt.Errorf("%w: dial tcp", domainPayment.ErrGateway)
			}
			return &appPayment.OpenCheckoutResult{GatewayOrderID: "order_gw1", Amount: 47900, Currency: "INR"}, nil
		}),
		VerifyPayment: useCaseFunc[appPayment.VerifyPaymentInput, *appPayment.VerifyPaymentResult](func(_ context.Context, in appPayment.VerifyPaymentInput) (*appPayment.VerifyPaymentResult, error) {
			s.verified = in
			switch in.Signature {
			case "bad":
				return nil, domainPayment.ErrSignatureMismatch
			case "expired":
				return nil, domainPayment.ErrCheckoutNotFound
			}
			return &appPayment.VerifyPaymentResult{
				Order:    sampleOrder(domainOrder.StatusProcessing),
				Replayed: in.PaymentID == "pay_seen",
			}, nil
		}),
	}

	s.server = httptest.NewServer(NewHandler(s.uc, nil, tel).Router())
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) do(method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

var customer = map[string]string{
	headerUserID:    "u-1",
	headerUserEmail: "a@example.com",
	headerUserName:  "Asha",
}

var admin = map[string]string{headerUserID: "ops", headerUserRole: "Admin"}

func (s *HandlerSuite) TestCreateOrder() {
	resp, body := s.do(http.MethodPost, "/orders",
		`{"items":[{"product_id":"p1","quantity":2,"size":"m"}],"shipping_address":{"city":"Pune"},"gift_wrap":true}`, customer)

	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("o-1", body["id"])
	s.Equal("Processing", body["status"])
	s.NotEmpty(resp.Header.Get("X-Request-ID"))

	s.Equal(domainOrder.Customer{ID: "u-1", Email: "a@example.com", Name: "Asha"}, s.created.Customer)
	s.Require().Len(s.created.Items, 1)
	s.Equal("m", s.created.Items[0].Size)
	s.True(s.created.GiftWrap)
	s.Equal("Pune", s.created.ShippingAddress.City)
}

func (s *HandlerSuite) TestCreateOrderErrors() {
	resp, _ := s.do(http.MethodPost, "/orders", `{"items":[]}`, customer)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, body := s.do(http.MethodPost, "/orders", `{"items":[{"product_id":"sold-out","quantity":1}]}`, customer)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(body["error"], "insufficient stock")

	resp, _ = s.do(http.MethodPost, "/orders", `{"items":[],"coupon":"FREE"}`, customer)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/orders", `{"items":[]}`, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerSuite) TestGetOrder() {
	resp, body := s.do(http.MethodGet, "/orders/o-1", "", customer)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("450", body["pricing"].(map[string]any)["total_price"])

	resp, _ = s.do(http.MethodGet, "/orders/o-1", "", map[string]string{headerUserID: "intruder"})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/orders/missing", "", customer)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/orders/boom", "", customer)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal("internal error", body["error"])
}

func (s *HandlerSuite) TestCancelOrder() {
	resp, body := s.do(http.MethodPost, "/orders/o-1/cancel", "", customer)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Cancelled", body["status"])

	resp, _ = s.do(http.MethodPost, "/orders/done/cancel", "", customer)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestUpdateStatus() {
	resp, body := s.do(http.MethodPatch, "/orders/o-1/status", `{"status":"shipped"}`, admin)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Shipped", body["status"])
	s.Equal(domainOrder.StatusShipped, s.updated.Target)
	s.True(s.updated.Actor.IsAdmin())

	resp, _ = s.do(http.MethodPatch, "/orders/o-1/status", `{"status":"lost"}`, admin)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestDeleteOrder() {
	resp, _ := s.do(http.MethodDelete, "/orders/o-1", "", admin)
	s.Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/orders/o-1", "", customer)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestOpenCheckout() {
	resp, body := s.do(http.MethodPost, "/checkout", `{"items":[{"product_id":"p1","quantity":1}]}`, customer)
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("order_gw1", body["gateway_order_id"])
	s.EqualValues(47900, body["amount"])

	resp, _ = s.do(http.MethodPost, "/checkout", `{"items":[{"product_id":"gone","quantity":1}]}`, customer)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/checkout", `{"items":[{"product_id":"offline","quantity":1}]}`, customer)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *HandlerSuite) TestVerifyPayment() {
	resp, body := s.do(http.MethodPost, "/checkout/verify",
		`{"gateway_order_id":"order_gw1","payment_id":"pay_new","signature":"ok"}`, nil)
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("o-1", body["id"])
	s.Equal(appPayment.VerifyPaymentInput{GatewayOrderID: "order_gw1", PaymentID: "pay_new", Signature: "ok"}, s.verified)

	resp, _ = s.do(http.MethodPost, "/checkout/verify",
		`{"gateway_order_id":"order_gw1","payment_id":"pay_seen","signature":"ok"}`, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/checkout/verify",
		`{"gateway_order_id":"order_gw1","payment_id":"pay_x","signature":"bad"}`, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/checkout/verify",
		`{"gateway_order_id":"order_gw1","payment_id":"pay_x","signature":"expired"}`, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestMethodNotAllowed() {
	resp, _ := s.do(http.MethodPut, "/checkout", `{}`, customer)
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *HandlerSuite) TestServerSpanJoinsIncomingTrace() {
	parent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	resp, _ := s.do(http.MethodGet, "/health", "", map[string]string{"traceparent": parent})
	s.Equal(http.StatusOK, resp.StatusCode)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	span := spans[0]
	s.Equal("GET /health", span.Name())
	s.Equal(trace.SpanKindServer, span.SpanKind())
	s.Equal("4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	s.Equal("00f067aa0ba902b7", span.Parent().SpanID().String())

	s.requests.mu.Lock()
	defer s.requests.mu.Unlock()
	s.Contains(s.requests.seen, "method=GET,route=GET /health,status=200")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func TestHTTPStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{application.NewValidation("x"), http.StatusBadRequest},
		{domainCatalog.ErrInvalidQuantity, http.StatusBadRequest},
		{domainCatalog.ErrInvalidSize, http.StatusBadRequest},
		{domainCatalog.ErrInvalidColor, http.StatusBadRequest},
		{domainInventory.ErrProductUnavailable, http.StatusBadRequest},
		{domainPayment.ErrPaymentNotSuccessful, http.StatusBadRequest},
		{fmt.Errorf("persist: %w", domainOrder.ErrConflict), http.StatusBadRequest},
		{domainOrder.ErrNotDeletable, http.StatusBadRequest},
		{domainCatalog.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %w", application.ErrRepository, errors.New("down")), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpStatusFor(tc.err), tc.err.Error())
	}
	require.Equal(t, http.StatusServiceUnavailable, httpStatusFor(domainPayment.ErrGateway))
}
