package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

type paymentReturnResponse struct {
	OrderID       string      `json:"orderId"`
	State         string      `json:"state"`
	Reason        string      `json:"reason,omitempty"`
	Attempts      int         `json:"attempts"`
	PaymentStatus string      `json:"paymentStatus,omitempty"`
	OrderNumber   string      `json:"orderNumber,omitempty"`
	Amount        json.Number `json:"amount,omitempty"`
	Currency      string      `json:"currency,omitempty"`
}

// paymentReturn is the landing page target after a gateway redirect. It polls
// the payment status until a terminal state or the attempt budget runs out.
// A pending outcome is a normal answer telling the customer to check back.
func (h *CheckoutHandlers) paymentReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	orderID := strings.TrimSpace(r.URL.Query().Get("orderId"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, services.ReconcileCommand{
		TenantID: requestctx.TenantID(ctx),
		OrderID:  orderID,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// client went away; nothing useful to write
			return
		case errors.Is(err, services.ErrReconcileInvalidInput):
			writeServiceError(ctx, w, err)
			return
		case errors.Is(err, context.DeadlineExceeded):
			// the request deadline ended polling; report what is known
		default:
			writeServiceError(ctx, w, err)
			return
		}
	}

	resp := paymentReturnResponse{
		OrderID:       orderID,
		State:         string(outcome.State),
		Reason:        outcome.Reason,
		Attempts:      outcome.Attempts,
		PaymentStatus: string(outcome.Status.PaymentStatus),
		OrderNumber:   outcome.Status.OrderNumber,
		Currency:      outcome.Status.Currency,
	}
	if outcome.Status.OrderID != "" {
		resp.Amount = amount(outcome.Status.Amount)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
