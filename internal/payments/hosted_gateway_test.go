package payments

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
)

func TestHostedGatewayCreateRedirect(t *testing.T) {
	var received hostedCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-7", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok_1", "url": "https://pay.example/r/tok_1"})
	}))
	defer srv.Close()

	gw, err := NewHostedGateway(HostedGatewayConfig{ID: "webpay", Endpoint: srv.URL + "/v1/", APIKey: "key-1"})
	require.NoError(t, err)

	redirect, err := gw.CreateRedirect(context.Background(), RedirectRequest{
		OrderID:        "ord_1",
		AttemptID:      "pa_1",
		Amount:         decimal.RequireFromString("89430"),
		Currency:       "clp",
		ReturnURL:      "https://shop.example/return?orderId=ord_1",
		CancelURL:      "https://shop.example/cart",
		IdempotencyKey: "idem-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/r/tok_1", redirect.PaymentURL)
	assert.Equal(t, "tok_1", redirect.ExternalRef)
	assert.Equal(t, "webpay", redirect.Gateway)
	assert.Equal(t, "89430", received.Amount)
	assert.Equal(t, "CLP", received.Currency)
	assert.Equal(t, "pa_1", received.Reference)
}

func TestHostedGatewayLookupStatus(t *testing.T) {
	statuses := map[string]string{"tok_paid": "approved", "tok_void": "aborted", "tok_wait": "initialized"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Path[len("/payments/"):]
		status, ok := statuses[token]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer srv.Close()

	gw, err := NewHostedGateway(HostedGatewayConfig{ID: "webpay", Endpoint: srv.URL})
	require.NoError(t, err)

	ctx := context.Background()
	got, err := gw.LookupStatus(ctx, "tok_paid")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got)

	got, err = gw.LookupStatus(ctx, "tok_void")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, got)

	got, err = gw.LookupStatus(ctx, "tok_wait")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got)

	_, err = gw.LookupStatus(ctx, "tok_missing")
	assert.ErrorIs(t, err, ErrAttemptUnknown)
}

func TestHostedGatewayRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw, err := NewHostedGateway(HostedGatewayConfig{ID: "webpay", Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = gw.CreateRedirect(context.Background(), RedirectRequest{OrderID: "ord_1"})
	assert.ErrorIs(t, err, ErrGatewayRejected)
}

func TestNewHostedGatewayValidatesEndpoint(t *testing.T) {
	_, err := NewHostedGateway(HostedGatewayConfig{ID: "webpay", Endpoint: "not a url"})
	assert.Error(t, err)
	_, err = NewHostedGateway(HostedGatewayConfig{Endpoint: "https://pay.example"})
	assert.Error(t, err)
}
