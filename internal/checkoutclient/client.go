// Package checkoutclient reads payment status from a running checkout API.
// It implements services.PaymentStatusReader so the reconciliation poller can
// run out of process, e.g. from the paymentwatch command.
package checkoutclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 32 << 10
	tenantHeader    = "X-Tenant-ID"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://checkout.example.com/api/v1.
	BaseURL    string
	HTTPClient *http.Client
	// BearerToken, when set, is sent as the Authorization header.
	BearerToken string
	UserAgent   string
}

// Client polls GET {base}/orders/{orderId}/payment-status.
type Client struct {
	base      *url.URL
	client    *http.Client
	token     string
	userAgent string
}

var _ services.PaymentStatusReader = (*Client)(nil)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("checkoutclient: invalid base url %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "checkoutclient/1"
	}
	return &Client{base: base, client: client, token: strings.TrimSpace(cfg.BearerToken), userAgent: userAgent}, nil
}

type paymentStatusPayload struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	PaymentStatus string          `json:"payment_status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       string          `json:"gateway"`
}

type errorPayload struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// ReadPaymentStatus fetches the order's payment status view.
// A 404 wraps services.ErrPaymentStatusNotFound and a 400 wraps
// services.ErrPaymentStatusInvalidInput; both end polling. Everything else
// that fails is transient.
func (c *Client) ReadPaymentStatus(ctx context.Context, tenantID, orderID string) (services.PaymentStatusView, error) {
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)
	if tenantID == "" || orderID == "" {
		return services.PaymentStatusView{}, fmt.Errorf("%w: tenant and order id are required", services.ErrPaymentStatusInvalidInput)
	}

	endpoint := c.base.JoinPath("orders", orderID, "payment-status")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(tenantHeader, tenantID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.PaymentStatusView{}, ctxErr
		}
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: order %s: %w", orderID, services.ErrPaymentStatusNotFound)
	case resp.StatusCode == http.StatusBadRequest:
		return services.PaymentStatusView{}, fmt.Errorf("%w: %s", services.ErrPaymentStatusInvalidInput, describe(body))
	case resp.StatusCode != http.StatusOK:
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: unexpected status %d: %s", resp.StatusCode, describe(body))
	}

	var payload paymentStatusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return services.PaymentStatusView{}, fmt.Errorf("checkoutclient: decode response: %w", err)
	}
	if payload.OrderID == "" {
		return services.PaymentStatusView{}, errors.New("checkoutclient: response missing order_id")
	}
	return domain.PaymentStatusView{
		OrderID:       payload.OrderID,
		OrderNumber:   payload.OrderNumber,
		PaymentStatus: domain.PaymentStatus(strings.ToLower(strings.TrimSpace(payload.PaymentStatus))),
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Gateway:       payload.Gateway,
	}, nil
}

func describe(body []byte) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		if payload.Message != "" {
			return payload.Code + ": " + payload.Message
		}
		return payload.Code
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}
