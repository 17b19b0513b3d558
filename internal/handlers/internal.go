package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/auth"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

const maxInternalRequestBody = 4 * 1024

// InternalHandlers serves service-to-service endpoints: coupon redemption for
// the order-processing collaborator and on-demand abandonment sweeps.
type InternalHandlers struct {
	coupons services.CouponService
	sweeper services.AttemptSweeper
}

// NewInternalHandlers constructs internal handlers.
func NewInternalHandlers(coupons services.CouponService, sweeper services.AttemptSweeper) *InternalHandlers {
	return &InternalHandlers{coupons: coupons, sweeper: sweeper}
}

// Routes registers internal endpoints under the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/coupons/redeem", h.redeemCoupon)
	r.Post("/payments/sweep", h.sweepAttempts)
}

type redeemCouponRequest struct {
	TenantID     string          `json:"tenantId"`
	Code         string          `json:"code"`
	CustomerID   string          `json:"customerId"`
	OrderID      string          `json:"orderId"`
	CartSubtotal decimal.Decimal `json:"cartSubtotal"`
}

type redeemCouponResponse struct {
	Code       string `json:"code"`
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId,omitempty"`
	TimesUsed  int    `json:"timesUsed"`
	RedeemedAt string `json:"redeemedAt"`
	Replayed   bool   `json:"replayed"`
}

func (h *InternalHandlers) redeemCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req redeemCouponRequest
	if !decodeJSONBody(w, r, maxInternalRequestBody, &req) {
		return
	}
	ctx = requestctx.WithTenant(ctx, req.TenantID)

	redemption, err := h.coupons.Redeem(ctx, services.RedeemCouponCommand{
		TenantID:     req.TenantID,
		Code:         req.Code,
		CustomerID:   req.CustomerID,
		OrderID:      req.OrderID,
		CartSubtotal: req.CartSubtotal,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	status := http.StatusCreated
	if redemption.Replayed {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, redeemCouponResponse{
		Code:       redemption.Code,
		OrderID:    redemption.OrderID,
		CustomerID: redemption.CustomerID,
		TimesUsed:  redemption.TimesUsed,
		RedeemedAt: redemption.RedeemedAt.UTC().Format(time.RFC3339Nano),
		Replayed:   redemption.Replayed,
	})
}

type sweepResponse struct {
	Scanned     int    `json:"scanned"`
	Abandoned   int    `json:"abandoned"`
	Settled     int    `json:"settled"`
	Skipped     int    `json:"skipped"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

func (h *InternalHandlers) sweepAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sweeper == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sweeper_unavailable", "attempt sweeper unavailable", http.StatusServiceUnavailable))
		return
	}
	result, err := h.sweeper.Sweep(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("sweep_failed", "payment attempt sweep failed", http.StatusServiceUnavailable).AsRetryable())
		return
	}
	resp := sweepResponse{
		Scanned:   result.Scanned,
		Abandoned: result.Abandoned,
		Settled:   result.Settled,
		Skipped:   result.Skipped,
	}
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok && identity != nil {
		resp.RequestedBy = identity.Email
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
