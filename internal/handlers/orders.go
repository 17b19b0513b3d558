package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

// OrderHandlers serves the payment status read model polled after a redirect.
type OrderHandlers struct {
	status services.PaymentStatusReader
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(status services.PaymentStatusReader) *OrderHandlers {
	return &OrderHandlers{status: status}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderId}/payment-status", h.paymentStatus)
}

// paymentStatusResponse keeps the snake_case names the storefront poller reads.
type paymentStatusResponse struct {
	OrderID       string      `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	PaymentStatus string      `json:"payment_status"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	Gateway       string      `json:"gateway"`
}

func (h *OrderHandlers) paymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	view, err := h.status.ReadPaymentStatus(ctx, requestctx.TenantID(ctx), orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentStatusResponse{
		OrderID:       view.OrderID,
		OrderNumber:   view.OrderNumber,
		PaymentStatus: string(view.PaymentStatus),
		Amount:        amount(view.Amount),
		Currency:      view.Currency,
		Gateway:       view.Gateway,
	})
}
