package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

func TestOrderPaymentStatus(t *testing.T) {
	var gotTenant, gotOrder string
	reader := &stubStatusReader{
		readFunc: func(_ context.Context, tenantID, orderID string) (services.PaymentStatusView, error) {
			gotTenant, gotOrder = tenantID, orderID
			return domain.PaymentStatusView{
				OrderID:       orderID,
				OrderNumber:   "A-1001",
				PaymentStatus: domain.PaymentStatusPending,
				Amount:        decimal.NewFromInt(89430),
				Currency:      "CLP",
				Gateway:       "stripe",
			}, nil
		},
	}
	router := NewRouter(WithOrderRoutes(NewOrderHandlers(reader).Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/orders/ord-1/payment-status", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tenant-1", gotTenant)
	assert.Equal(t, "ord-1", gotOrder)
	assert.JSONEq(t, `{
		"order_id": "ord-1",
		"order_number": "A-1001",
		"payment_status": "pending",
		"amount": 89430,
		"currency": "CLP",
		"gateway": "stripe"
	}`, rr.Body.String())
}

func TestOrderPaymentStatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", services.ErrPaymentStatusNotFound, http.StatusNotFound, "order_not_found"},
		{"invalid", services.ErrPaymentStatusInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"unavailable", services.ErrPaymentStatusUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &stubStatusReader{
				readFunc: func(context.Context, string, string) (services.PaymentStatusView, error) {
					return services.PaymentStatusView{}, tc.err
				},
			}
			router := NewRouter(WithOrderRoutes(NewOrderHandlers(reader).Routes))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, checkoutRequest(http.MethodGet, "/api/v1/orders/ord-404/payment-status", ""))

			require.Equal(t, tc.status, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
		})
	}
}
