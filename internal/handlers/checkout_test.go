package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/idempotency"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

type stubCheckoutService struct {
	quoteFunc  func(ctx context.Context, cmd services.QuoteTotalsCommand) (services.CheckoutQuote, error)
	commitFunc func(ctx context.Context, cmd services.CommitOrderCommand) (services.Order, error)
}

func (s *stubCheckoutService) QuoteTotals(ctx context.Context, cmd services.QuoteTotalsCommand) (services.CheckoutQuote, error) {
	return s.quoteFunc(ctx, cmd)
}

func (s *stubCheckoutService) CommitOrder(ctx context.Context, cmd services.CommitOrderCommand) (services.Order, error) {
	return s.commitFunc(ctx, cmd)
}

func newCheckoutRouter(deps CheckoutHandlersDeps) http.Handler {
	return NewRouter(WithCheckoutRoutes(NewCheckoutHandlers(deps).Routes))
}

func checkoutRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(TenantHeader, "tenant-1")
	req.Header.Set(SessionHeader, "sess-1")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCheckoutShippingQuote(t *testing.T) {
	var got services.ShippingQuoteCommand
	shipping := &stubShippingService{
		quoteFunc: func(_ context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
			got = cmd
			return domain.ShippingQuote{
				Cost:          decimal.NewFromInt(3750),
				Method:        domain.ShippingMethodZone,
				ZoneID:        "metro",
				EstimatedDays: 2,
				Options: []domain.ShippingOption{
					{Method: domain.ShippingMethodZone, ZoneID: "metro", Cost: decimal.NewFromInt(3750), EstimatedDays: 2},
					{Method: domain.ShippingMethodPickup, ZoneID: "metro", Cost: decimal.Zero},
				},
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Shipping: shipping})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/shipping-quote?commune=Providencia&weightKg=1.5&subtotal=80000", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, "Providencia", got.Commune)
	assert.True(t, got.WeightKg.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(80000)))

	body := decodeBody(t, rr)
	assert.EqualValues(t, 3750, body["cost"])
	assert.Equal(t, "zone", body["method"])
	assert.Equal(t, "metro", body["zoneId"])
	options, ok := body["options"].([]any)
	require.True(t, ok)
	assert.Len(t, options, 2)
}

func TestCheckoutShippingQuoteRejectsBadWeight(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{Shipping: &stubShippingService{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/shipping-quote?commune=x&weightKg=heavy", ""))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rr)["error"])
}

func TestCheckoutShippingQuoteNoZone(t *testing.T) {
	shipping := &stubShippingService{
		quoteFunc: func(context.Context, services.ShippingQuoteCommand) (services.ShippingQuote, error) {
			return services.ShippingQuote{}, fmt.Errorf("quote: %w", services.ErrNoZoneForAddress)
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Shipping: shipping})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/shipping-quote?commune=Valparaiso", ""))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "no_zone_for_address", decodeBody(t, rr)["error"])
}

func TestCheckoutApplyCouponErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"inactive", services.ErrCouponInactive, http.StatusUnprocessableEntity, "coupon_inactive"},
		{"window", services.ErrCouponOutOfWindow, http.StatusUnprocessableEntity, "coupon_out_of_window"},
		{"global", services.ErrCouponGloballyExhausted, http.StatusUnprocessableEntity, "coupon_globally_exhausted"},
		{"per customer", services.ErrCouponPerCustomerExhausted, http.StatusUnprocessableEntity, "coupon_per_customer_exhausted"},
		{"minimum", services.ErrCouponBelowMinimum, http.StatusUnprocessableEntity, "coupon_below_minimum"},
		{"misconfigured", services.ErrCouponMisconfigured, http.StatusUnprocessableEntity, "coupon_misconfigured"},
		{"unknown", services.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found"},
		{"invalid", fmt.Errorf("%w: code is required", services.ErrCouponInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"unavailable", services.ErrCouponUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupons := &stubCouponService{
				applyFunc: func(context.Context, services.ApplyCouponCommand) (services.CouponApplication, error) {
					return services.CouponApplication{}, tc.err
				},
			}
			router := newCheckoutRouter(CheckoutHandlersDeps{Coupons: coupons})

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/apply-coupon", `{"code":"diez","cartSubtotal":"80000"}`))

			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decodeBody(t, rr)["error"])
		})
	}
}

func TestCheckoutApplyCoupon(t *testing.T) {
	var got services.ApplyCouponCommand
	coupons := &stubCouponService{
		applyFunc: func(_ context.Context, cmd services.ApplyCouponCommand) (services.CouponApplication, error) {
			got = cmd
			return services.CouponApplication{Code: "DIEZ", DiscountAmount: decimal.NewFromInt(8000)}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Coupons: coupons})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/apply-coupon", `{"code":"diez","cartSubtotal":"80000","customerId":"cust-1"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "diez", got.Code)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.True(t, got.CartSubtotal.Equal(decimal.NewFromInt(80000)))

	body := decodeBody(t, rr)
	assert.Equal(t, "DIEZ", body["code"])
	assert.EqualValues(t, 8000, body["discountAmount"])
}

func TestCheckoutApplyCouponRequiresBody(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{Coupons: &stubCouponService{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/apply-coupon", ""))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rr)["error"])
}

func TestCheckoutGateways(t *testing.T) {
	payments := &stubPaymentDispatcher{
		listFunc: func(_ context.Context, tenantID string) ([]services.GatewayDescriptor, error) {
			assert.Equal(t, "tenant-1", tenantID)
			return []services.GatewayDescriptor{
				{ID: "stripe", DisplayName: "Tarjeta", Provider: "stripe"},
				{ID: "khipu", DisplayName: "Transferencia", Sandbox: true, Provider: "hosted"},
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Payments: payments})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/gateways", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var body gatewaysResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "stripe", body.DefaultGatewayID)
	require.Len(t, body.Gateways, 2)
	assert.True(t, body.Gateways[1].Sandbox)
}

func TestCheckoutGatewaysNoneActive(t *testing.T) {
	payments := &stubPaymentDispatcher{
		listFunc: func(context.Context, string) ([]services.GatewayDescriptor, error) {
			return nil, services.ErrNoActiveGateway
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Payments: payments})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/gateways", ""))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "no_active_gateway", decodeBody(t, rr)["error"])
}

func sampleQuote() services.CheckoutQuote {
	return services.CheckoutQuote{
		Generation: 4,
		Currency:   "CLP",
		CouponCode: "DIEZ",
		Totals: domain.OrderTotals{
			Subtotal:       decimal.NewFromInt(80000),
			GrossSubtotal:  decimal.NewFromInt(80000),
			DiscountAmount: decimal.NewFromInt(8000),
			ShippingCost:   decimal.NewFromInt(3750),
			TaxAmount:      decimal.NewFromInt(13680),
			Total:          decimal.NewFromInt(89430),
		},
		SelectedOption: domain.ShippingOption{Method: domain.ShippingMethodZone, ZoneID: "metro", Cost: decimal.NewFromInt(3750), EstimatedDays: 2},
		Cart: domain.CartSnapshot{
			QuoteLines: []domain.QuoteLine{{ProductRef: "p-2", VariantRef: "v-2", Title: "Mesa a medida", Quantity: 1}},
		},
	}
}

func TestCheckoutTotals(t *testing.T) {
	var got services.QuoteTotalsCommand
	checkout := &stubCheckoutService{
		quoteFunc: func(_ context.Context, cmd services.QuoteTotalsCommand) (services.CheckoutQuote, error) {
			got = cmd
			return sampleQuote(), nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Checkout: checkout})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/totals", `{"couponCode":"diez","commune":"Ñuñoa","shippingMethod":"zone"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, services.CartRef{TenantID: "tenant-1", SessionID: "sess-1"}, got.CartRef)
	assert.Equal(t, "Ñuñoa", got.Commune)
	assert.Equal(t, domain.ShippingMethodZone, got.ShippingMethod)

	var body quoteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.EqualValues(t, 4, body.Generation)
	assert.Equal(t, json.Number("89430"), body.Totals.Total)
	assert.Equal(t, json.Number("13680"), body.Totals.TaxAmount)
	assert.Equal(t, "metro", body.Shipping.ZoneID)
	require.Len(t, body.QuoteLines, 1)
	assert.Equal(t, "v-2", body.QuoteLines[0].VariantRef)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestCheckoutTotalsRequiresSession(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{Checkout: &stubCheckoutService{}})

	req := checkoutRequest(http.MethodPost, "/api/v1/checkout/totals", `{}`)
	req.Header.Del(SessionHeader)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "session_required", decodeBody(t, rr)["error"])
}

func TestCheckoutCommitOrder(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var got services.CommitOrderCommand
	checkout := &stubCheckoutService{
		commitFunc: func(_ context.Context, cmd services.CommitOrderCommand) (services.Order, error) {
			got = cmd
			quote := sampleQuote()
			return services.Order{
				ID:             "ord-1",
				TenantID:       cmd.TenantID,
				OrderNumber:    "A-1001",
				Currency:       quote.Currency,
				Totals:         quote.Totals,
				CouponCode:     "DIEZ",
				ShippingMethod: domain.ShippingMethodZone,
				CartGeneration: 4,
				CreatedAt:      created,
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Checkout: checkout})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/orders", `{"commune":"Providencia","expectedGeneration":4}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.EqualValues(t, 4, got.ExpectedGeneration)
	assert.Equal(t, "sess-1", got.SessionID)

	var body orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ord-1", body.OrderID)
	assert.Equal(t, "A-1001", body.OrderNumber)
	assert.Equal(t, json.Number("89430"), body.Totals.Total)
	assert.Equal(t, created.Format(time.RFC3339Nano), body.CreatedAt)
}

func TestCheckoutCommitOrderCartChanged(t *testing.T) {
	checkout := &stubCheckoutService{
		commitFunc: func(context.Context, services.CommitOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutCartChanged
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Checkout: checkout})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/orders", `{"expectedGeneration":3}`))

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "cart_changed", decodeBody(t, rr)["error"])
}

func TestCheckoutInitiatePayment(t *testing.T) {
	expires := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	var got services.InitiatePaymentCommand
	payments := &stubPaymentDispatcher{
		initiateFunc: func(_ context.Context, cmd services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
			got = cmd
			return services.PaymentInitiation{
				PaymentURL: "https://pay.example.com/session/abc",
				AttemptID:  "att-1",
				GatewayID:  "stripe",
				ExpiresAt:  expires,
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Payments: payments})

	req := checkoutRequest(http.MethodPost, "/api/v1/checkout/payments", `{"orderId":"ord-1","gatewayId":"stripe","returnUrl":"https://shop/return","cancelUrl":"https://shop/cancel"}`)
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, "ord-1", got.OrderID)

	var body initiatePaymentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "https://pay.example.com/session/abc", body.PaymentURL)
	assert.Equal(t, expires.Format(time.RFC3339Nano), body.ExpiresAt)
}

func TestCheckoutInitiatePaymentValidation(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{Payments: &stubPaymentDispatcher{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/payments", `{"orderId":"ord-1"}`))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rr)["error"])
}

func TestCheckoutInitiatePaymentGatewayErrorsAreRetryable(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable"},
		{services.ErrGatewayMisconfigured, http.StatusUnprocessableEntity, "gateway_misconfigured"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			payments := &stubPaymentDispatcher{
				initiateFunc: func(context.Context, services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
					return services.PaymentInitiation{}, fmt.Errorf("initiate: %w", tc.err)
				},
			}
			router := newCheckoutRouter(CheckoutHandlersDeps{Payments: payments})

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/payments", `{"orderId":"ord-1","returnUrl":"https://shop/r","cancelUrl":"https://shop/c"}`))

			require.Equal(t, tc.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tc.code, body["error"])
			assert.Equal(t, true, body["retryable"])
		})
	}
}

func TestCheckoutInitiatePaymentAlreadyPaid(t *testing.T) {
	payments := &stubPaymentDispatcher{
		initiateFunc: func(context.Context, services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
			return services.PaymentInitiation{}, services.ErrPaymentOrderSettled
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Payments: payments})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodPost, "/api/v1/checkout/payments", `{"orderId":"ord-1","returnUrl":"https://shop/r","cancelUrl":"https://shop/c"}`))

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "order_already_paid", decodeBody(t, rr)["error"])
}

func TestCheckoutIdempotentPaymentReplay(t *testing.T) {
	calls := 0
	payments := &stubPaymentDispatcher{
		initiateFunc: func(context.Context, services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
			calls++
			return services.PaymentInitiation{
				PaymentURL: fmt.Sprintf("https://pay.example.com/session/%d", calls),
				AttemptID:  fmt.Sprintf("att-%d", calls),
				GatewayID:  "stripe",
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{
		Payments:    payments,
		Idempotency: idempotency.Middleware(idempotency.NewMemoryStore()),
	})

	send := func(key, body string) *httptest.ResponseRecorder {
		req := checkoutRequest(http.MethodPost, "/api/v1/checkout/payments", body)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}
	payload := `{"orderId":"ord-1","gatewayId":"stripe","returnUrl":"https://shop/r","cancelUrl":"https://shop/c"}`

	first := send("key-1", payload)
	require.Equal(t, http.StatusOK, first.Code)

	second := send("key-1", payload)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	conflict := send("key-1", `{"orderId":"ord-2","returnUrl":"https://shop/r","cancelUrl":"https://shop/c"}`)
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "idempotency_key_conflict", decodeBody(t, conflict)["error"])

	missing := send("", payload)
	require.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, 1, calls)
}

func TestCheckoutUnavailableWithoutServices(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{})

	for _, target := range []string{"/api/v1/checkout/gateways", "/api/v1/checkout/shipping-quote", "/api/v1/checkout/return?orderId=x"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, checkoutRequest(http.MethodGet, target, ""))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, target)
	}
}

func TestPaymentReturn(t *testing.T) {
	var got services.ReconcileCommand
	reconciler := &stubReconciler{
		reconcileFunc: func(_ context.Context, cmd services.ReconcileCommand) (services.ReconciliationOutcome, error) {
			got = cmd
			return services.ReconciliationOutcome{
				State:    domain.ReconciliationSuccess,
				Attempts: 2,
				Status: domain.PaymentStatusView{
					OrderID:       "ord-1",
					OrderNumber:   "A-1001",
					PaymentStatus: domain.PaymentStatusCompleted,
					Amount:        decimal.NewFromInt(89430),
					Currency:      "CLP",
				},
			}, nil
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Reconciler: reconciler})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/return?orderId=ord-1", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, services.ReconcileCommand{TenantID: "tenant-1", OrderID: "ord-1"}, got)

	var body paymentReturnResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "success", body.State)
	assert.Equal(t, 2, body.Attempts)
	assert.Equal(t, "completed", body.PaymentStatus)
	assert.Equal(t, json.Number("89430"), body.Amount)
}

func TestPaymentReturnPendingOnDeadline(t *testing.T) {
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.ReconcileCommand) (services.ReconciliationOutcome, error) {
			return services.ReconciliationOutcome{State: domain.ReconciliationPending, Attempts: 3}, context.DeadlineExceeded
		},
	}
	router := newCheckoutRouter(CheckoutHandlersDeps{Reconciler: reconciler})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/return?orderId=ord-1", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "pending", body["state"])
	_, hasAmount := body["amount"]
	assert.False(t, hasAmount)
}

func TestPaymentReturnRequiresOrder(t *testing.T) {
	router := newCheckoutRouter(CheckoutHandlersDeps{Reconciler: &stubReconciler{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/checkout/return", ""))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentReturnClientGone(t *testing.T) {
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.ReconcileCommand) (services.ReconciliationOutcome, error) {
			return services.ReconciliationOutcome{}, context.Canceled
		},
	}
	h := NewCheckoutHandlers(CheckoutHandlersDeps{Reconciler: reconciler})

	req := httptest.NewRequest(http.MethodGet, "/return?orderId=ord-1", nil)
	req = req.WithContext(requestctx.WithTenant(req.Context(), "tenant-1"))
	rr := httptest.NewRecorder()
	h.paymentReturn(rr, req)

	assert.Zero(t, rr.Body.Len())
}
