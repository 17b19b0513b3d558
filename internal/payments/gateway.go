package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

var (
	// ErrUnsupportedGateway is returned when no gateway is registered under a key.
	ErrUnsupportedGateway = errors.New("payments: unsupported gateway")
	// ErrGatewayRejected means the gateway refused the request because of its
	// own configuration (credentials, merchant, endpoint).
	ErrGatewayRejected = errors.New("payments: gateway rejected request")
	// ErrAttemptUnknown means the gateway has no record of the referenced payment.
	ErrAttemptUnknown = errors.New("payments: unknown payment reference")
)

// RedirectRequest describes a payment the customer will complete off-site.
type RedirectRequest struct {
	OrderID        string
	OrderNumber    string
	AttemptID      string
	Amount         decimal.Decimal
	Currency       string
	Precision      int32
	CustomerID     string
	ReturnURL      string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

// Redirect is the gateway's answer: where to send the customer.
type Redirect struct {
	Gateway     string
	ExternalRef string
	PaymentURL  string
	ExpiresAt   time.Time
}

// Gateway is a redirect-based payment service provider.
type Gateway interface {
	CreateRedirect(ctx context.Context, req RedirectRequest) (Redirect, error)
	LookupStatus(ctx context.Context, externalRef string) (domain.PaymentStatus, error)
}

// Registry resolves gateways by provider key.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry copies gateways, normalising keys to lower case.
func NewRegistry(gateways map[string]Gateway) (*Registry, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copied := make(map[string]Gateway, len(gateways))
	for key, gw := range gateways {
		normalized := normalizeKey(key)
		if normalized == "" || gw == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for key %q", key)
		}
		copied[normalized] = gw
	}
	return &Registry{gateways: copied}, nil
}

// Resolve returns the gateway serving descriptor. The descriptor's Provider
// wins; its ID is used when no provider is named.
func (r *Registry) Resolve(descriptor domain.GatewayDescriptor) (string, Gateway, error) {
	if r == nil {
		return "", nil, ErrUnsupportedGateway
	}
	key := normalizeKey(descriptor.Provider)
	if key == "" {
		key = normalizeKey(descriptor.ID)
	}
	gw, ok := r.gateways[key]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, key)
	}
	return key, gw, nil
}

// Keys lists registered provider keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.gateways))
	for key := range r.gateways {
		keys = append(keys, key)
	}
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
