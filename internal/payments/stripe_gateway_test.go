package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

type fakeSessionAPI struct {
	newParams *stripe.CheckoutSessionParams
	session   *stripe.CheckoutSession
	err       error
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.newParams = params
	return f.session, f.err
}

func (f *fakeSessionAPI) Get(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.session, f.err
}

func TestStripeGatewayCreateRedirect(t *testing.T) {
	api := &fakeSessionAPI{session: &stripe.CheckoutSession{
		ID:        "cs_test_1",
		URL:       "https://checkout.stripe.com/c/pay/cs_test_1",
		ExpiresAt: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).Unix(),
	}}
	gw, err := NewStripeGateway(StripeGatewayConfig{Sessions: api, AccountID: "acct_1"})
	if err != nil {
		t.Fatalf("NewStripeGateway: %v", err)
	}

	redirect, err := gw.CreateRedirect(context.Background(), RedirectRequest{
		OrderID:        "ord_1",
		OrderNumber:    "A-1001",
		AttemptID:      "pa_1",
		Amount:         decimal.RequireFromString("89430"),
		Currency:       "CLP",
		Precision:      0,
		ReturnURL:      "https://shop.example/checkout/return?orderId=ord_1",
		CancelURL:      "https://shop.example/checkout",
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}
	if redirect.PaymentURL != api.session.URL || redirect.ExternalRef != "cs_test_1" {
		t.Fatalf("unexpected redirect %#v", redirect)
	}

	params := api.newParams
	if got := *params.LineItems[0].PriceData.UnitAmount; got != 89430 {
		t.Fatalf("expected zero-decimal amount 89430, got %d", got)
	}
	if got := *params.LineItems[0].PriceData.Currency; got != "clp" {
		t.Fatalf("expected lower-case currency, got %s", got)
	}
	if params.Metadata["order_id"] != "ord_1" || params.Metadata["attempt_id"] != "pa_1" {
		t.Fatalf("unexpected metadata %#v", params.Metadata)
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "idem-1" {
		t.Fatal("expected idempotency key on params")
	}
}

func TestStripeGatewayUsesMinorUnits(t *testing.T) {
	api := &fakeSessionAPI{session: &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/x"}}
	gw, _ := NewStripeGateway(StripeGatewayConfig{Sessions: api})
	_, err := gw.CreateRedirect(context.Background(), RedirectRequest{
		OrderID:   "ord_2",
		Amount:    decimal.RequireFromString("12.345"),
		Currency:  "USD",
		Precision: 2,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}
	if got := *api.newParams.LineItems[0].PriceData.UnitAmount; got != 1235 {
		t.Fatalf("expected 1235 cents, got %d", got)
	}
}

func TestStripeSessionStatusMapping(t *testing.T) {
	cases := []struct {
		status  stripe.CheckoutSessionStatus
		payment stripe.CheckoutSessionPaymentStatus
		want    domain.PaymentStatus
	}{
		{stripe.CheckoutSessionStatusComplete, stripe.CheckoutSessionPaymentStatusPaid, domain.PaymentStatusCompleted},
		{stripe.CheckoutSessionStatusComplete, stripe.CheckoutSessionPaymentStatusUnpaid, domain.PaymentStatusPending},
		{stripe.CheckoutSessionStatusOpen, stripe.CheckoutSessionPaymentStatusUnpaid, domain.PaymentStatusPending},
		{stripe.CheckoutSessionStatusExpired, stripe.CheckoutSessionPaymentStatusUnpaid, domain.PaymentStatusCancelled},
	}
	for _, tc := range cases {
		got := stripeSessionStatus(&stripe.CheckoutSession{Status: tc.status, PaymentStatus: tc.payment})
		if got != tc.want {
			t.Fatalf("%s/%s: expected %s, got %s", tc.status, tc.payment, tc.want, got)
		}
	}
}

func TestStripeGatewayClassifiesErrors(t *testing.T) {
	api := &fakeSessionAPI{err: &stripe.Error{HTTPStatusCode: 401, Type: stripe.ErrorTypeInvalidRequest}}
	gw, _ := NewStripeGateway(StripeGatewayConfig{Sessions: api})
	if _, err := gw.CreateRedirect(context.Background(), RedirectRequest{OrderID: "o"}); !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}

	api.err = &stripe.Error{HTTPStatusCode: 404}
	if _, err := gw.LookupStatus(context.Background(), "cs_missing"); !errors.Is(err, ErrAttemptUnknown) {
		t.Fatalf("expected ErrAttemptUnknown, got %v", err)
	}

	api.err = errors.New("connection reset")
	_, err := gw.CreateRedirect(context.Background(), RedirectRequest{OrderID: "o"})
	if err == nil || errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	if _, err := NewStripeGateway(StripeGatewayConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
