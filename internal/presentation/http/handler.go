package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domainCatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domainInventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// UseCases are the application entry points the HTTP surface exposes.
type UseCases struct {
	CreateOrder   application.UseCase[appOrder.CreateOrderInput, *domainOrder.Order]
	GetOrder      application.UseCase[appOrder.GetOrderInput, *domainOrder.Order]
	CancelOrder   application.UseCase[appOrder.CancelOrderInput, *domainOrder.Order]
	UpdateStatus  application.UseCase[appOrder.UpdateStatusInput, *domainOrder.Order]
	DeleteOrder   application.UseCase[appOrder.DeleteOrderInput, struct{}]
	OpenCheckout  application.UseCase[appPayment.OpenCheckoutInput, *appPayment.OpenCheckoutResult]
	VerifyPayment application.UseCase[appPayment.VerifyPaymentInput, *appPayment.VerifyPaymentResult]
}

type Handler struct {
	uc  UseCases
	log observability.Logger
	tel observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	tracerName           = "minishop.http"

	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"

	maxBodyBytes = 1 << 20
)

var errUnauthenticated = errors.New("missing " + headerUserID + " header")

func NewHandler(uc UseCases, logger observability.Logger, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		uc:  uc,
		log: baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel: tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger + HTTP metrics) → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/orders", h.handleCreateOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodPost, "/orders/{id}/cancel", h.handleCancelOrder)
	h.muxHandle(mux, http.MethodPatch, "/orders/{id}/status", h.handleUpdateStatus)
	h.muxHandle(mux, http.MethodDelete, "/orders/{id}", h.handleDeleteOrder)
	h.muxHandle(mux, http.MethodPost, "/checkout", h.handleOpenCheckout)
	h.muxHandle(mux, http.MethodPost, "/checkout/verify", h.handleVerifyPayment)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	pattern := method + " " + route
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerUserID) },
			h.tel,
		)(
			h.withAccessLog(handler),
		),
	)
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		r = r.WithContext(contextWithRoute(r.Context(), pattern))
		wrapped.ServeHTTP(w, r)
	})
}

type orderRequest struct {
	Items           []domainOrder.CartItem `json:"items"`
	ShippingAddress domainOrder.Address    `json:"shipping_address"`
	GiftWrap        bool                   `json:"gift_wrap"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	o, err := h.uc.CreateOrder.Execute(r.Context(), appOrder.CreateOrderInput{
		Customer:        customer,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		GiftWrap:        req.GiftWrap,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	o, err := h.uc.GetOrder.Execute(r.Context(), appOrder.GetOrderInput{Actor: actor, OrderID: r.PathValue("id")})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	o, err := h.uc.CancelOrder.Execute(r.Context(), appOrder.CancelOrderInput{Actor: actor, OrderID: r.PathValue("id")})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	target, err := domainOrder.ParseStatus(req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	o, err := h.uc.UpdateStatus.Execute(r.Context(), appOrder.UpdateStatusInput{
		Actor:   actor,
		OrderID: r.PathValue("id"),
		Target:  target,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if _, err := h.uc.DeleteOrder.Execute(r.Context(), appOrder.DeleteOrderInput{Actor: actor, OrderID: r.PathValue("id")}); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type openCheckoutResponse struct {
	GatewayOrderID string              `json:"gateway_order_id"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	Pricing        domainOrder.Pricing `json:"pricing"`
	ExpiresAt      time.Time           `json:"expires_at"`
}

func (h *Handler) handleOpenCheckout(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.uc.OpenCheckout.Execute(r.Context(), appPayment.OpenCheckoutInput{
		Customer:        customer,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		GiftWrap:        req.GiftWrap,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, openCheckoutResponse{
		GatewayOrderID: res.GatewayOrderID,
		Amount:         res.Amount,
		Currency:       res.Currency,
		Pricing:        res.Pricing,
		ExpiresAt:      res.ExpiresAt,
	})
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.uc.VerifyPayment.Execute(r.Context(), appPayment.VerifyPaymentInput{
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res.Order)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// actor reads the caller identity set by the upstream gateway.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domainOrder.Actor, bool) {
	id := strings.TrimSpace(r.Header.Get(headerUserID))
	if id == "" {
		h.writeError(w, r, http.StatusUnauthorized, errUnauthenticated)
		return domainOrder.Actor{}, false
	}
	return domainOrder.Actor{UserID: id, Role: strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole)))}, true
}

func (h *Handler) customer(w http.ResponseWriter, r *http.Request) (domainOrder.Customer, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return domainOrder.Customer{}, false
	}
	return domainOrder.Customer{
		ID:    actor.UserID,
		Email: strings.TrimSpace(r.Header.Get(headerUserEmail)),
		Name:  strings.TrimSpace(r.Header.Get(headerUserName)),
	}, true
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// decodeJSON rejects unknown fields and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed",
			observability.F("status", status),
			observability.F("error", err),
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, httpStatusFor(err), err)
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, domainOrder.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainCatalog.ErrNotFound),
		errors.Is(err, domainPayment.ErrCheckoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainPayment.ErrGateway):
		return http.StatusServiceUnavailable
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domainCatalog.ErrInvalidProduct),
		errors.Is(err, domainCatalog.ErrInvalidQuantity),
		errors.Is(err, domainCatalog.ErrInvalidSize),
		errors.Is(err, domainCatalog.ErrInvalidColor),
		errors.Is(err, domainInventory.ErrProductUnavailable),
		errors.Is(err, domainInventory.ErrInsufficientStock),
		errors.Is(err, domainPayment.ErrSignatureMismatch),
		errors.Is(err, domainPayment.ErrPaymentNotSuccessful),
		errors.Is(err, domainOrder.ErrInvalidStateTransition),
		errors.Is(err, domainOrder.ErrInvalidStatus),
		errors.Is(err, domainOrder.ErrNotDeletable),
		errors.Is(err, domainOrder.ErrEmpty),
		errors.Is(err, domainOrder.ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
