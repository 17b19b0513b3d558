package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/textutil"
)

// StripeLogger receives gateway events.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGatewayConfig configures StripeGateway.
type StripeGatewayConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Sessions  stripeSessionAPI
}

// StripeGateway redirects customers to Stripe Checkout.
type StripeGateway struct {
	sessions stripeSessionAPI
	account  string
	clock    func() time.Time
	logger   StripeLogger
}

// NewStripeGateway builds a StripeGateway from an API key or injected sessions API.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeGateway{
		sessions: sessions,
		account:  strings.TrimSpace(cfg.AccountID),
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// CreateRedirect opens a Checkout session for the full order amount.
func (g *StripeGateway) CreateRedirect(ctx context.Context, req RedirectRequest) (Redirect, error) {
	name := "Order"
	if req.OrderNumber != "" {
		name = "Order " + req.OrderNumber
	}

	metadata := textutil.NormalizeStringMap(req.Metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["order_id"] = req.OrderID
	metadata["attempt_id"] = req.AttemptID

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(domain.MinorUnits(req.Amount, req.Precision)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.Metadata = metadata
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}

	session, err := g.sessions.New(params)
	if err != nil {
		return Redirect{}, classifyStripeError("create checkout session", err)
	}

	g.logger(ctx, "payments.stripe.session_created", map[string]any{
		"sessionId": session.ID,
		"orderId":   req.OrderID,
	})

	expiresAt := g.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return Redirect{
		Gateway:     "stripe",
		ExternalRef: session.ID,
		PaymentURL:  session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// LookupStatus maps the Checkout session state to a payment status.
func (g *StripeGateway) LookupStatus(ctx context.Context, externalRef string) (domain.PaymentStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	session, err := g.sessions.Get(externalRef, params)
	if err != nil {
		return "", classifyStripeError("get checkout session", err)
	}
	return stripeSessionStatus(session), nil
}

func stripeSessionStatus(session *stripe.CheckoutSession) domain.PaymentStatus {
	switch session.Status {
	case stripe.CheckoutSessionStatusExpired:
		return domain.PaymentStatusCancelled
	case stripe.CheckoutSessionStatusComplete:
		switch session.PaymentStatus {
		case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
			return domain.PaymentStatusCompleted
		}
	}
	return domain.PaymentStatusPending
}

func classifyStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == 404:
			return fmt.Errorf("stripe: %s: %w: %v", op, ErrAttemptUnknown, err)
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest, stripeErr.HTTPStatusCode == 401, stripeErr.HTTPStatusCode == 403:
			return fmt.Errorf("stripe: %s: %w: %v", op, ErrGatewayRejected, err)
		}
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}
