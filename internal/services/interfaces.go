package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CartSnapshot          = domain.CartSnapshot
	Coupon                = domain.Coupon
	ShippingQuote         = domain.ShippingQuote
	OrderTotals           = domain.OrderTotals
	Order                 = domain.Order
	GatewayDescriptor     = domain.GatewayDescriptor
	PaymentAttempt        = domain.PaymentAttempt
	PaymentEvent          = domain.PaymentEvent
	PaymentStatusView     = domain.PaymentStatusView
	ReconciliationOutcome = domain.ReconciliationOutcome
	SystemHealthReport    = domain.SystemHealthReport
)

// CartService manages the session-scoped carts feeding checkout totals.
type CartService interface {
	GetCart(ctx context.Context, cmd CartRef) (CartSnapshot, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) (CartSnapshot, error)
	SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) (CartSnapshot, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (CartSnapshot, error)
}

// CouponService validates coupons against a cart and records redemptions.
type CouponService interface {
	ApplyCoupon(ctx context.Context, cmd ApplyCouponCommand) (CouponApplication, error)
	Redeem(ctx context.Context, cmd RedeemCouponCommand) (CouponRedemption, error)
}

// ShippingService quotes shipping using the tenant's cached zone index.
type ShippingService interface {
	QuoteShipping(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error)
	ZoneIndex(ctx context.Context, tenantID string) (*ZoneIndex, error)
}

// CheckoutService computes totals from one cart snapshot and commits orders.
type CheckoutService interface {
	QuoteTotals(ctx context.Context, cmd QuoteTotalsCommand) (CheckoutQuote, error)
	CommitOrder(ctx context.Context, cmd CommitOrderCommand) (Order, error)
}

// PaymentDispatcher lists tenant gateways and hands customers off to one of them.
type PaymentDispatcher interface {
	ListActiveGateways(ctx context.Context, tenantID string) ([]GatewayDescriptor, error)
	Initiate(ctx context.Context, cmd InitiatePaymentCommand) (PaymentInitiation, error)
}

// PaymentStatusReader is the read-only view polled during reconciliation.
type PaymentStatusReader interface {
	ReadPaymentStatus(ctx context.Context, tenantID, orderID string) (PaymentStatusView, error)
}

// PaymentReconciler converts an asynchronous gateway outcome into a terminal state.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, cmd ReconcileCommand) (ReconciliationOutcome, error)
}

// AttemptSweeper abandons payment attempts that stayed pending past their TTL.
type AttemptSweeper interface {
	Sweep(ctx context.Context) (SweepResult, error)
}

// PaymentEventPublisher accepts payment lifecycle notifications for downstream processing.
type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event PaymentEvent) (string, error)
}

// SystemService exposes health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CartRef identifies a session cart.
type CartRef struct {
	TenantID  string
	SessionID string
}

// AddCartLineCommand adds a catalog variant to a session cart.
type AddCartLineCommand struct {
	CartRef
	VariantRef string
	Quantity   int
}

// SetCartQuantityCommand replaces a line quantity.
type SetCartQuantityCommand struct {
	CartRef
	VariantRef string
	Quantity   int
}

// RemoveCartLineCommand drops a line.
type RemoveCartLineCommand struct {
	CartRef
	VariantRef string
}

// ApplyCouponCommand asks for the discount a coupon grants on a subtotal.
type ApplyCouponCommand struct {
	TenantID     string
	Code         string
	CartSubtotal decimal.Decimal
	CustomerID   string
}

// CouponApplication is the discount granted by a valid coupon.
type CouponApplication struct {
	Code           string
	DiscountAmount decimal.Decimal
	Coupon         Coupon
}

// RedeemCouponCommand consumes a coupon use for a committed order.
type RedeemCouponCommand struct {
	TenantID     string
	Code         string
	CustomerID   string
	OrderID      string
	CartSubtotal decimal.Decimal
}

// CouponRedemption reports the outcome of a redemption.
type CouponRedemption struct {
	Code       string
	OrderID    string
	CustomerID string
	TimesUsed  int
	RedeemedAt time.Time
	Replayed   bool
}

// ShippingQuoteCommand carries the address and cart figures for a quote.
type ShippingQuoteCommand struct {
	TenantID string
	Commune  string
	WeightKg decimal.Decimal
	Subtotal decimal.Decimal
}

// QuoteTotalsCommand prices the session cart.
type QuoteTotalsCommand struct {
	CartRef
	CouponCode     string
	Commune        string
	CustomerID     string
	ShippingMethod domain.ShippingMethod
}

// CheckoutQuote is the priced view of one cart generation.
type CheckoutQuote struct {
	Generation     uint64
	Currency       string
	Cart           CartSnapshot
	Totals         OrderTotals
	Shipping       ShippingQuote
	SelectedOption domain.ShippingOption
	CouponCode     string
}

// CommitOrderCommand persists an order priced from the session cart.
type CommitOrderCommand struct {
	QuoteTotalsCommand
	// ExpectedGeneration, when non-zero, must match the cart generation the
	// client last priced.
	ExpectedGeneration uint64
}

// InitiatePaymentCommand starts a gateway redirect for an order.
type InitiatePaymentCommand struct {
	TenantID       string
	OrderID        string
	GatewayID      string
	ReturnURL      string
	CancelURL      string
	CustomerID     string
	IdempotencyKey string
}

// PaymentInitiation is the redirect handed back to the client.
type PaymentInitiation struct {
	PaymentURL string
	AttemptID  string
	GatewayID  string
	ExpiresAt  time.Time
}

// ReconcileCommand identifies the order whose payment is reconciled.
type ReconcileCommand struct {
	TenantID string
	OrderID  string
}

// SweepResult summarises one abandonment pass.
type SweepResult struct {
	Scanned   int
	Abandoned int
	Settled   int
	Skipped   int
}
