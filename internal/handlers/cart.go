package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

const maxCartRequestBody = 4 * 1024

// CartHandlers exposes the session cart under /checkout/cart.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers cart endpoints under the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cart", h.getCart)
	r.Post("/cart/lines", h.addLine)
	r.Patch("/cart/lines/{variantRef}", h.setQuantity)
	r.Delete("/cart/lines/{variantRef}", h.removeLine)
}

type cartLinePayload struct {
	ProductRef     string       `json:"productRef"`
	VariantRef     string       `json:"variantRef"`
	Title          string       `json:"title"`
	UnitPrice      json.Number  `json:"unitPrice"`
	CompareAtPrice *json.Number `json:"compareAtPrice,omitempty"`
	Quantity       int          `json:"quantity"`
	WeightKg       json.Number  `json:"weightKg"`
}

type quoteLinePayload struct {
	ProductRef string `json:"productRef"`
	VariantRef string `json:"variantRef"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
}

type cartResponse struct {
	Generation uint64             `json:"generation"`
	Lines      []cartLinePayload  `json:"lines"`
	QuoteLines []quoteLinePayload `json:"quoteLines"`
	Subtotal   json.Number        `json:"subtotal"`
	WeightKg   json.Number        `json:"weightKg"`
}

func newCartResponse(snap services.CartSnapshot) cartResponse {
	resp := cartResponse{
		Generation: snap.Generation,
		Lines:      make([]cartLinePayload, 0, len(snap.PurchaseLines)),
		QuoteLines: newQuoteLinePayloads(snap.QuoteLines),
		Subtotal:   amount(snap.Subtotal()),
		WeightKg:   amount(snap.TotalWeightKg()),
	}
	for _, line := range snap.PurchaseLines {
		payload := cartLinePayload{
			ProductRef: line.ProductRef,
			VariantRef: line.VariantRef,
			Title:      line.Title,
			UnitPrice:  amount(line.UnitPrice),
			Quantity:   line.Quantity,
			WeightKg:   amount(line.WeightKg),
		}
		if line.CompareAtPrice != nil {
			compareAt := amount(*line.CompareAtPrice)
			payload.CompareAtPrice = &compareAt
		}
		resp.Lines = append(resp.Lines, payload)
	}
	return resp
}

func newQuoteLinePayloads(lines []domain.QuoteLine) []quoteLinePayload {
	out := make([]quoteLinePayload, 0, len(lines))
	for _, line := range lines {
		out = append(out, quoteLinePayload{
			ProductRef: line.ProductRef,
			VariantRef: line.VariantRef,
			Title:      line.Title,
			Quantity:   line.Quantity,
		})
	}
	return out
}

func cartRef(r *http.Request) services.CartRef {
	ctx := r.Context()
	return services.CartRef{TenantID: requestctx.TenantID(ctx), SessionID: requestctx.SessionID(ctx)}
}

func (h *CartHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return requireSession(w, r)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	snap, err := h.carts.GetCart(r.Context(), cartRef(r))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartResponse(snap))
}

type addLineRequest struct {
	VariantRef string `json:"variantRef"`
	Quantity   int    `json:"quantity"`
}

func (h *CartHandlers) addLine(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req addLineRequest
	if !decodeJSONBody(w, r, maxCartRequestBody, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := h.carts.AddLine(r.Context(), services.AddCartLineCommand{
		CartRef:    cartRef(r),
		VariantRef: req.VariantRef,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartResponse(snap))
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	var req setQuantityRequest
	if !decodeJSONBody(w, r, maxCartRequestBody, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	snap, err := h.carts.SetQuantity(r.Context(), services.SetCartQuantityCommand{
		CartRef:    cartRef(r),
		VariantRef: strings.TrimSpace(chi.URLParam(r, "variantRef")),
		Quantity:   *req.Quantity,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartResponse(snap))
}

func (h *CartHandlers) removeLine(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	snap, err := h.carts.RemoveLine(r.Context(), services.RemoveCartLineCommand{
		CartRef:    cartRef(r),
		VariantRef: strings.TrimSpace(chi.URLParam(r, "variantRef")),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCartResponse(snap))
}
