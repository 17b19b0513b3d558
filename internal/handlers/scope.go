package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/auth"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/observability"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
)

const (
	// TenantHeader carries the tenant a request operates on.
	TenantHeader = "X-Tenant-ID"
	// SessionHeader carries the checkout session handle for cart routes.
	SessionHeader = "X-Checkout-Session"

	tenantQueryParam  = "tenantId"
	maxIdentifierSize = 128
	defaultBodyLimit  = 16 * 1024
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

// TenantScope resolves the tenant from the X-Tenant-ID header or the tenantId
// query parameter and records it, together with the checkout session handle,
// on the request context.
func TenantScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tenant := strings.TrimSpace(r.Header.Get(TenantHeader))
			if tenant == "" {
				tenant = strings.TrimSpace(r.URL.Query().Get(tenantQueryParam))
			}
			if tenant == "" {
				httpx.WriteError(ctx, w, httpx.NewError("tenant_required", "X-Tenant-ID header or tenantId query parameter is required", http.StatusBadRequest))
				return
			}
			if len(tenant) > maxIdentifierSize {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tenant id is too long", http.StatusBadRequest))
				return
			}
			ctx = requestctx.WithTenant(ctx, tenant)

			if session := strings.TrimSpace(r.Header.Get(SessionHeader)); session != "" {
				if len(session) > maxIdentifierSize {
					httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session handle is too long", http.StatusBadRequest))
					return
				}
				ctx = requestctx.WithSession(ctx, session)
			}
			next.ServeHTTP(w, observability.ScopeLogger(r.WithContext(ctx)))
		})
	}
}

// customerID prefers the verified identity over a client supplied id.
func customerID(r *http.Request, supplied string) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		return identity.UID
	}
	return strings.TrimSpace(supplied)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the request body, answering the client
// itself when it fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// amount renders a decimal as a JSON number without float conversion.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func parseQueryDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.New(key + " must be a decimal number")
	}
	if value.IsNegative() {
		return decimal.Zero, errors.New(key + " must not be negative")
	}
	return value, nil
}
