package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client talks to a Razorpay-style REST gateway with basic auth.
type Client struct {
	base   string
	keyID  string
	secret string
	http   *http.Client
}

// New returns a gateway client. A nil hc gets a client with the configured timeout.
func New(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:  cfg.KeyID,
		secret: cfg.KeySecret,
		http:   hc,
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type paymentResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Method  string `json:"method"`
	Amount  int64  `json:"amount"`
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, metadata map[string]string) (*payment.GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt, Notes: metadata})
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}
	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: order response without id", payment.ErrGateway)
	}
	return &payment.GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt}, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	var out paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &payment.Payment{
		ID:      out.ID,
		OrderID: out.OrderID,
		Status:  payment.Status(strings.ToLower(out.Status)),
		Method:  out.Method,
		Amount:  out.Amount,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", payment.ErrGateway, err)
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", payment.ErrGateway, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: status %d: %s", payment.ErrGateway, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", payment.ErrGateway, path, err)
	}
	return nil
}
