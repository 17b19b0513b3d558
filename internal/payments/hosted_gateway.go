package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

const (
	defaultHostedTimeout = 10 * time.Second
	maxHostedResponse    = 64 << 10
)

// HostedGatewayConfig configures a redirect gateway exposing a small JSON API:
// POST {endpoint}/payments returns {token, url}; GET {endpoint}/payments/{token}
// returns {status}.
type HostedGatewayConfig struct {
	ID         string
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// HostedGateway talks to a hosted payment page provider.
type HostedGateway struct {
	id       string
	endpoint *url.URL
	apiKey   string
	client   *http.Client
}

// NewHostedGateway validates cfg.
func NewHostedGateway(cfg HostedGatewayConfig) (*HostedGateway, error) {
	id := normalizeKey(cfg.ID)
	if id == "" {
		return nil, errors.New("hosted gateway: id is required")
	}
	endpoint, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("hosted gateway %s: invalid endpoint %q", id, cfg.Endpoint)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHostedTimeout}
	}
	return &HostedGateway{id: id, endpoint: endpoint, apiKey: strings.TrimSpace(cfg.APIKey), client: client}, nil
}

type hostedCreateRequest struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"returnUrl"`
	CancelURL string `json:"cancelUrl"`
}

type hostedCreateResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type hostedStatusResponse struct {
	Status string `json:"status"`
}

// CreateRedirect registers the payment and returns the hosted page URL.
func (g *HostedGateway) CreateRedirect(ctx context.Context, req RedirectRequest) (Redirect, error) {
	payload, err := json.Marshal(hostedCreateRequest{
		OrderID:   req.OrderID,
		Reference: req.AttemptID,
		Amount:    req.Amount.StringFixed(req.Precision),
		Currency:  strings.ToUpper(req.Currency),
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		return Redirect{}, fmt.Errorf("hosted gateway %s: encode request: %w", g.id, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint.JoinPath("payments").String(), bytes.NewReader(payload))
	if err != nil {
		return Redirect{}, fmt.Errorf("hosted gateway %s: build request: %w", g.id, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var out hostedCreateResponse
	if err := g.do(httpReq, &out); err != nil {
		return Redirect{}, err
	}
	return Redirect{Gateway: g.id, ExternalRef: out.Token, PaymentURL: strings.TrimSpace(out.URL)}, nil
}

// LookupStatus reads the provider's view of a payment.
func (g *HostedGateway) LookupStatus(ctx context.Context, externalRef string) (domain.PaymentStatus, error) {
	if strings.TrimSpace(externalRef) == "" {
		return "", fmt.Errorf("hosted gateway %s: %w", g.id, ErrAttemptUnknown)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint.JoinPath("payments", externalRef).String(), nil)
	if err != nil {
		return "", fmt.Errorf("hosted gateway %s: build request: %w", g.id, err)
	}
	var out hostedStatusResponse
	if err := g.do(httpReq, &out); err != nil {
		return "", err
	}
	return hostedStatus(out.Status), nil
}

func (g *HostedGateway) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("hosted gateway %s: %w", g.id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHostedResponse))
	if err != nil {
		return fmt.Errorf("hosted gateway %s: read response: %w", g.id, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet:
		return fmt.Errorf("hosted gateway %s: %w", g.id, ErrAttemptUnknown)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("hosted gateway %s: status %d: %w", g.id, resp.StatusCode, ErrGatewayRejected)
	case resp.StatusCode >= 300:
		return fmt.Errorf("hosted gateway %s: unexpected status %d", g.id, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("hosted gateway %s: decode response: %w", g.id, err)
	}
	return nil
}

func hostedStatus(raw string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "paid", "approved", "authorized":
		return domain.PaymentStatusCompleted
	case "failed", "rejected", "declined":
		return domain.PaymentStatusFailed
	case "cancelled", "canceled", "aborted", "expired":
		return domain.PaymentStatusCancelled
	}
	return domain.PaymentStatusPending
}
