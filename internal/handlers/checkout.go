package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/auth"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/requestctx"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

const (
	maxCheckoutRequestBody    = 8 * 1024
	defaultIdempotencyHeader  = "Idempotency-Key"
	checkoutUnavailableReason = "checkout service unavailable"
)

// CheckoutHandlersDeps wires the services behind /checkout.
type CheckoutHandlersDeps struct {
	Authenticator *auth.Authenticator
	Shipping      services.ShippingService
	Coupons       services.CouponService
	Checkout      services.CheckoutService
	Payments      services.PaymentDispatcher
	Reconciler    services.PaymentReconciler
	// Idempotency guards order commits and payment initiation when set.
	Idempotency       func(http.Handler) http.Handler
	IdempotencyHeader string
	MaxBodyBytes      int64
}

// CheckoutHandlers exposes shipping quotes, coupons, totals, order commit and
// payment hand-off. Guests are allowed; a bearer token, when present, must be valid.
type CheckoutHandlers struct {
	authn       *auth.Authenticator
	shipping    services.ShippingService
	coupons     services.CouponService
	checkout    services.CheckoutService
	payments    services.PaymentDispatcher
	reconciler  services.PaymentReconciler
	idempotency func(http.Handler) http.Handler
	idemHeader  string
	maxBody     int64
}

// NewCheckoutHandlers constructs checkout handlers. Missing services answer 503.
func NewCheckoutHandlers(deps CheckoutHandlersDeps) *CheckoutHandlers {
	header := strings.TrimSpace(deps.IdempotencyHeader)
	if header == "" {
		header = defaultIdempotencyHeader
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = maxCheckoutRequestBody
	}
	return &CheckoutHandlers{
		authn:       deps.Authenticator,
		shipping:    deps.Shipping,
		coupons:     deps.Coupons,
		checkout:    deps.Checkout,
		payments:    deps.Payments,
		reconciler:  deps.Reconciler,
		idempotency: deps.Idempotency,
		idemHeader:  header,
		maxBody:     maxBody,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalCustomer())
	}
	group.Get("/shipping-quote", h.shippingQuote)
	group.Post("/apply-coupon", h.applyCoupon)
	group.Get("/gateways", h.listGateways)
	group.Post("/totals", h.quoteTotals)
	group.Get("/return", h.paymentReturn)

	guarded := group
	if h.idempotency != nil {
		guarded = group.With(h.idempotency)
	}
	guarded.Post("/orders", h.commitOrder)
	guarded.Post("/payments", h.initiatePayment)
}

type shippingOptionPayload struct {
	Method  string      `json:"method"`
	Carrier string      `json:"carrier,omitempty"`
	ZoneID  string      `json:"zoneId,omitempty"`
	Cost    json.Number `json:"cost"`
	ETADays int         `json:"etaDays"`
}

type shippingQuoteResponse struct {
	Cost             json.Number             `json:"cost"`
	Method           string                  `json:"method"`
	ETADays          int                     `json:"etaDays"`
	Carrier          string                  `json:"carrier,omitempty"`
	ZoneID           string                  `json:"zoneId,omitempty"`
	Options          []shippingOptionPayload `json:"options"`
	ConflictingZones []string                `json:"conflictingZones,omitempty"`
}

func (h *CheckoutHandlers) shippingQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	query := r.URL.Query()
	commune := strings.TrimSpace(query.Get("commune"))
	if commune == "" {
		commune = strings.TrimSpace(query.Get("code"))
	}
	weight, err := parseQueryDecimal(r, "weightKg")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	subtotal, err := parseQueryDecimal(r, "subtotal")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	quote, err := h.shipping.QuoteShipping(ctx, services.ShippingQuoteCommand{
		TenantID: requestctx.TenantID(ctx),
		Commune:  commune,
		WeightKg: weight,
		Subtotal: subtotal,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newShippingQuoteResponse(quote))
}

func newShippingQuoteResponse(quote services.ShippingQuote) shippingQuoteResponse {
	resp := shippingQuoteResponse{
		Cost:             amount(quote.Cost),
		Method:           string(quote.Method),
		ETADays:          quote.EstimatedDays,
		Carrier:          quote.Carrier,
		ZoneID:           quote.ZoneID,
		Options:          make([]shippingOptionPayload, 0, len(quote.Options)),
		ConflictingZones: quote.ConflictingZones,
	}
	for _, opt := range quote.Options {
		resp.Options = append(resp.Options, newShippingOptionPayload(opt))
	}
	return resp
}

func newShippingOptionPayload(opt domain.ShippingOption) shippingOptionPayload {
	return shippingOptionPayload{
		Method:  string(opt.Method),
		Carrier: opt.Carrier,
		ZoneID:  opt.ZoneID,
		Cost:    amount(opt.Cost),
		ETADays: opt.EstimatedDays,
	}
}

type applyCouponRequest struct {
	Code         string          `json:"code"`
	CartSubtotal decimal.Decimal `json:"cartSubtotal"`
	CustomerID   string          `json:"customerId"`
}

type applyCouponResponse struct {
	Code           string      `json:"code"`
	DiscountAmount json.Number `json:"discountAmount"`
}

func (h *CheckoutHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	var req applyCouponRequest
	if !decodeJSONBody(w, r, h.maxBody, &req) {
		return
	}
	applied, err := h.coupons.ApplyCoupon(ctx, services.ApplyCouponCommand{
		TenantID:     requestctx.TenantID(ctx),
		Code:         req.Code,
		CartSubtotal: req.CartSubtotal,
		CustomerID:   customerID(r, req.CustomerID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, applyCouponResponse{
		Code:           applied.Code,
		DiscountAmount: amount(applied.DiscountAmount),
	})
}

type gatewayPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Sandbox     bool   `json:"sandbox"`
}

type gatewaysResponse struct {
	Gateways         []gatewayPayload `json:"gateways"`
	DefaultGatewayID string           `json:"defaultGatewayId,omitempty"`
}

func (h *CheckoutHandlers) listGateways(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	gateways, err := h.payments.ListActiveGateways(ctx, requestctx.TenantID(ctx))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := gatewaysResponse{Gateways: make([]gatewayPayload, 0, len(gateways))}
	for _, g := range gateways {
		resp.Gateways = append(resp.Gateways, gatewayPayload{ID: g.ID, DisplayName: g.DisplayName, Sandbox: g.Sandbox})
	}
	if len(resp.Gateways) > 0 {
		resp.DefaultGatewayID = resp.Gateways[0].ID
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type totalsRequest struct {
	CouponCode         string `json:"couponCode"`
	Commune            string `json:"commune"`
	CustomerID         string `json:"customerId"`
	ShippingMethod     string `json:"shippingMethod"`
	ExpectedGeneration uint64 `json:"expectedGeneration"`
}

type totalsPayload struct {
	Subtotal       json.Number `json:"subtotal"`
	GrossSubtotal  json.Number `json:"grossSubtotal"`
	DiscountAmount json.Number `json:"discountAmount"`
	ShippingCost   json.Number `json:"shippingCost"`
	TaxAmount      json.Number `json:"taxAmount"`
	Total          json.Number `json:"total"`
	TaxIncluded    bool        `json:"taxIncluded"`
}

type quoteResponse struct {
	Generation uint64                  `json:"generation"`
	Currency   string                  `json:"currency"`
	CouponCode string                  `json:"couponCode,omitempty"`
	Totals     totalsPayload           `json:"totals"`
	Shipping   shippingOptionPayload   `json:"shipping"`
	Options    []shippingOptionPayload `json:"shippingOptions"`
	QuoteLines []quoteLinePayload      `json:"quoteLines"`
}

func newTotalsPayload(t domain.OrderTotals) totalsPayload {
	return totalsPayload{
		Subtotal:       amount(t.Subtotal),
		GrossSubtotal:  amount(t.GrossSubtotal),
		DiscountAmount: amount(t.DiscountAmount),
		ShippingCost:   amount(t.ShippingCost),
		TaxAmount:      amount(t.TaxAmount),
		Total:          amount(t.Total),
		TaxIncluded:    t.TaxIncluded,
	}
}

func (r totalsRequest) command(req *http.Request) services.QuoteTotalsCommand {
	ctx := req.Context()
	return services.QuoteTotalsCommand{
		CartRef:        services.CartRef{TenantID: requestctx.TenantID(ctx), SessionID: requestctx.SessionID(ctx)},
		CouponCode:     r.CouponCode,
		Commune:        r.Commune,
		CustomerID:     customerID(req, r.CustomerID),
		ShippingMethod: domain.ShippingMethod(strings.TrimSpace(r.ShippingMethod)),
	}
}

func (h *CheckoutHandlers) quoteTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	if !requireSession(w, r) {
		return
	}
	var req totalsRequest
	if !decodeJSONBody(w, r, h.maxBody, &req) {
		return
	}
	quote, err := h.checkout.QuoteTotals(ctx, req.command(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := quoteResponse{
		Generation: quote.Generation,
		Currency:   quote.Currency,
		CouponCode: quote.CouponCode,
		Totals:     newTotalsPayload(quote.Totals),
		Shipping:   newShippingOptionPayload(quote.SelectedOption),
		Options:    make([]shippingOptionPayload, 0, len(quote.Shipping.Options)),
		QuoteLines: newQuoteLinePayloads(quote.Cart.QuoteLines),
	}
	for _, opt := range quote.Shipping.Options {
		resp.Options = append(resp.Options, newShippingOptionPayload(opt))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

type orderResponse struct {
	OrderID        string             `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	Currency       string             `json:"currency"`
	CouponCode     string             `json:"couponCode,omitempty"`
	ShippingMethod string             `json:"shippingMethod"`
	Generation     uint64             `json:"generation"`
	Totals         totalsPayload      `json:"totals"`
	QuoteLines     []quoteLinePayload `json:"quoteLines"`
	CreatedAt      string             `json:"createdAt"`
}

func (h *CheckoutHandlers) commitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	if !requireSession(w, r) {
		return
	}
	var req totalsRequest
	if !decodeJSONBody(w, r, h.maxBody, &req) {
		return
	}
	order, err := h.checkout.CommitOrder(ctx, services.CommitOrderCommand{
		QuoteTotalsCommand: req.command(r),
		ExpectedGeneration: req.ExpectedGeneration,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Currency:       order.Currency,
		CouponCode:     order.CouponCode,
		ShippingMethod: string(order.ShippingMethod),
		Generation:     order.CartGeneration,
		Totals:         newTotalsPayload(order.Totals),
		QuoteLines:     newQuoteLinePayloads(order.QuoteLines),
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

type initiatePaymentRequest struct {
	OrderID    string `json:"orderId"`
	GatewayID  string `json:"gatewayId"`
	ReturnURL  string `json:"returnUrl"`
	CancelURL  string `json:"cancelUrl"`
	CustomerID string `json:"customerId"`
}

type initiatePaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
	AttemptID  string `json:"attemptId"`
	GatewayID  string `json:"gatewayId"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

func (h *CheckoutHandlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", checkoutUnavailableReason, http.StatusServiceUnavailable))
		return
	}
	var req initiatePaymentRequest
	if !decodeJSONBody(w, r, h.maxBody, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.ReturnURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId, returnUrl and cancelUrl are required", http.StatusBadRequest))
		return
	}

	initiation, err := h.payments.Initiate(ctx, services.InitiatePaymentCommand{
		TenantID:       requestctx.TenantID(ctx),
		OrderID:        req.OrderID,
		GatewayID:      req.GatewayID,
		ReturnURL:      req.ReturnURL,
		CancelURL:      req.CancelURL,
		CustomerID:     customerID(r, req.CustomerID),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(h.idemHeader)),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := initiatePaymentResponse{
		PaymentURL: initiation.PaymentURL,
		AttemptID:  initiation.AttemptID,
		GatewayID:  initiation.GatewayID,
	}
	if !initiation.ExpiresAt.IsZero() {
		resp.ExpiresAt = initiation.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func requireSession(w http.ResponseWriter, r *http.Request) bool {
	if requestctx.SessionID(r.Context()) != "" {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("session_required", SessionHeader+" header is required", http.StatusBadRequest))
	return false
}
