package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

type errorMapping struct {
	target    error
	code      string
	message   string
	status    int
	retryable bool
}

// serviceErrors is checked in order; the first match wins.
var serviceErrors = []errorMapping{
	{services.ErrCouponInactive, "coupon_inactive", "coupon is not active", http.StatusUnprocessableEntity, false},
	{services.ErrCouponOutOfWindow, "coupon_out_of_window", "coupon is not valid at this time", http.StatusUnprocessableEntity, false},
	{services.ErrCouponGloballyExhausted, "coupon_globally_exhausted", "coupon usage limit reached", http.StatusUnprocessableEntity, false},
	{services.ErrCouponPerCustomerExhausted, "coupon_per_customer_exhausted", "coupon already used the maximum number of times", http.StatusUnprocessableEntity, false},
	{services.ErrCouponBelowMinimum, "coupon_below_minimum", "cart subtotal is below the coupon minimum", http.StatusUnprocessableEntity, false},
	{services.ErrCouponMisconfigured, "coupon_misconfigured", "coupon cannot be applied", http.StatusUnprocessableEntity, false},
	{services.ErrCouponNotFound, "coupon_not_found", "coupon not found", http.StatusNotFound, false},
	{services.ErrNoZoneForAddress, "no_zone_for_address", "no shipping zone covers this address", http.StatusUnprocessableEntity, false},
	{services.ErrCartLineNotFound, "cart_line_not_found", "cart line not found", http.StatusNotFound, false},
	{services.ErrCartVariantNotFound, "variant_not_found", "variant not found", http.StatusNotFound, false},
	{services.ErrCheckoutEmptyCart, "cart_empty", "cart has no purchasable lines", http.StatusUnprocessableEntity, false},
	{services.ErrCheckoutCartChanged, "cart_changed", "cart has changed; refresh totals and retry", http.StatusConflict, false},
	{services.ErrCheckoutTenantNotFound, "tenant_not_found", "tenant not found", http.StatusNotFound, false},
	{services.ErrShippingTenantNotFound, "tenant_not_found", "tenant not found", http.StatusNotFound, false},
	{services.ErrNoActiveGateway, "no_active_gateway", "no payment gateway is available", http.StatusUnprocessableEntity, false},
	{services.ErrGatewayMisconfigured, "gateway_misconfigured", "payment gateway is not available; choose another", http.StatusUnprocessableEntity, true},
	{services.ErrGatewayUnavailable, "gateway_unavailable", "payment gateway did not respond; retry or choose another", http.StatusBadGateway, true},
	{services.ErrPaymentOrderNotFound, "order_not_found", "order not found", http.StatusNotFound, false},
	{services.ErrPaymentStatusNotFound, "order_not_found", "order not found", http.StatusNotFound, false},
	{services.ErrPaymentOrderSettled, "order_already_paid", "order is already paid", http.StatusConflict, false},
	{services.ErrCartInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrCouponInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrShippingInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrCheckoutInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrPricingInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrPaymentInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrPaymentStatusInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrReconcileInvalidInput, "invalid_request", "", http.StatusBadRequest, false},
	{services.ErrCartUnavailable, "service_unavailable", "catalog unavailable", http.StatusServiceUnavailable, true},
	{services.ErrCouponUnavailable, "service_unavailable", "coupons unavailable", http.StatusServiceUnavailable, true},
	{services.ErrShippingUnavailable, "service_unavailable", "shipping unavailable", http.StatusServiceUnavailable, true},
	{services.ErrCheckoutUnavailable, "service_unavailable", "checkout unavailable", http.StatusServiceUnavailable, true},
	{services.ErrPaymentUnavailable, "service_unavailable", "payments unavailable", http.StatusServiceUnavailable, true},
	{services.ErrPaymentStatusUnavailable, "service_unavailable", "payment status unavailable", http.StatusServiceUnavailable, true},
	{context.DeadlineExceeded, "timeout", "request timed out", http.StatusGatewayTimeout, true},
}

// writeServiceError maps service sentinels to the JSON error envelope.
// Invalid input errors echo the service message so the client can correct it.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		apiErr := httpx.NewError(m.code, message, m.status)
		if m.retryable {
			apiErr = apiErr.AsRetryable()
		}
		httpx.WriteError(ctx, w, apiErr)
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process checkout request", http.StatusInternalServerError))
}
