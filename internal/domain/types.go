package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a purchasable or quote-only entry in a checkout session cart.
type CartLine struct {
	ProductRef     string
	VariantRef     string
	Title          string
	UnitPrice      decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Quantity       int
	IsQuoteOnly    bool
	WeightKg       decimal.Decimal
}

// QuoteLine is a cart entry awaiting a manual quote. It never carries a price.
type QuoteLine struct {
	ProductRef string
	VariantRef string
	Title      string
	Quantity   int
}

// CartSnapshot is an immutable view over a cart at a given generation.
type CartSnapshot struct {
	Generation    uint64
	PurchaseLines []CartLine
	QuoteLines    []QuoteLine
}

// Subtotal sums unit price times quantity over purchase lines.
func (s CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.PurchaseLines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// TotalWeightKg sums line weight times quantity over purchase lines.
func (s CartSnapshot) TotalWeightKg() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.PurchaseLines {
		total = total.Add(line.WeightKg.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// IsEmpty reports whether the snapshot holds no purchase lines.
func (s CartSnapshot) IsEmpty() bool {
	return len(s.PurchaseLines) == 0
}

// CatalogProduct is the catalog collaborator's product reference.
type CatalogProduct struct {
	ID    string
	Title string
}

// CatalogVariant is the sellable unit referenced by cart lines.
type CatalogVariant struct {
	ID             string
	ProductID      string
	Title          string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	WeightKg       decimal.Decimal
	IsQuoteOnly    bool
	IsActive       bool
}

// DiscountType enumerates coupon discount semantics.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the cart subtotal.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixedAmount discounts a fixed currency amount.
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Coupon describes a tenant promotion code.
type Coupon struct {
	Code                  string
	Description           string
	DiscountType          DiscountType
	DiscountValue         decimal.Decimal
	MinimumPurchaseAmount *decimal.Decimal
	MaximumDiscountAmount *decimal.Decimal
	MaxUses               *int
	MaxUsesPerCustomer    *int
	TimesUsed             int
	ValidFrom             time.Time
	ValidUntil            time.Time
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CouponRedemption records a single consumed use of a coupon.
type CouponRedemption struct {
	TenantID   string
	Code       string
	CustomerID string
	OrderID    string
	RedeemedAt time.Time
}

// ShippingMode selects how a tenant prices shipping.
type ShippingMode string

const (
	// ShippingModeZones prices shipping exclusively from configured zones.
	ShippingModeZones ShippingMode = "zones"
	// ShippingModeProvider always quotes the default external provider.
	ShippingModeProvider ShippingMode = "provider"
	// ShippingModeHybrid tries zones first and falls back to the provider.
	ShippingModeHybrid ShippingMode = "hybrid"
)

// ShippingZone is a tenant shipping rule keyed by commune codes or names.
type ShippingZone struct {
	ID                    string
	Name                  string
	CommuneCodes          []string
	BaseCost              decimal.Decimal
	CostPerKg             decimal.Decimal
	FreeShippingThreshold *decimal.Decimal
	EstimatedDays         int
	AllowsStorePickup     bool
	IsActive              bool
	Position              int
}

// Commune is an entry of the delivery area directory.
type Commune struct {
	Code   string
	Name   string
	Region string
}

// ShippingProvider is the flat external carrier quote configured per tenant.
type ShippingProvider struct {
	Carrier       string
	Cost          decimal.Decimal
	EstimatedDays int
}

// GatewayDescriptor identifies a payment gateway enabled for a tenant.
type GatewayDescriptor struct {
	ID          string
	DisplayName string
	Sandbox     bool
	Provider    string
}

// TenantCheckoutConfig gathers per-tenant checkout settings.
type TenantCheckoutConfig struct {
	TenantID         string
	Currency         string
	Precision        int32
	ShippingMode     ShippingMode
	DefaultProvider  ShippingProvider
	TaxRate          decimal.Decimal
	PricesIncludeTax bool
	ActiveGateways   []GatewayDescriptor
}

// ShippingMethod identifies how an order is delivered.
type ShippingMethod string

const (
	ShippingMethodZone     ShippingMethod = "zone"
	ShippingMethodProvider ShippingMethod = "provider"
	ShippingMethodPickup   ShippingMethod = "store_pickup"
)

// ShippingOption is one selectable delivery alternative.
type ShippingOption struct {
	Method        ShippingMethod
	Carrier       string
	ZoneID        string
	Cost          decimal.Decimal
	EstimatedDays int
}

// ShippingQuote is the resolved shipping cost for a cart and address.
type ShippingQuote struct {
	Cost             decimal.Decimal
	Method           ShippingMethod
	Carrier          string
	ZoneID           string
	EstimatedDays    int
	Options          []ShippingOption
	ConflictingZones []string
}

// OrderTotals captures computed monetary totals for an order.
// Total always equals Subtotal - DiscountAmount + ShippingCost + TaxAmount.
type OrderTotals struct {
	Subtotal       decimal.Decimal
	GrossSubtotal  decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingCost   decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	TaxIncluded    bool
}

// Order is the record handed to the order-processing collaborator.
type Order struct {
	ID             string
	TenantID       string
	OrderNumber    string
	CustomerID     string
	Currency       string
	Totals         OrderTotals
	CouponCode     string
	Commune        string
	ShippingMethod ShippingMethod
	Lines          []CartLine
	QuoteLines     []QuoteLine
	CartGeneration uint64
	CreatedAt      time.Time
}

// PaymentStatus enumerates gateway-agnostic payment attempt states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusNone is reported when no attempt exists yet for an order.
	PaymentStatusNone PaymentStatus = "none"
)

// IsFinal reports whether the status can no longer change.
func (s PaymentStatus) IsFinal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentAttempt tracks a redirect to an external gateway for an order.
type PaymentAttempt struct {
	ID          string
	TenantID    string
	OrderID     string
	GatewayID   string
	Status      PaymentStatus
	ExternalRef string
	Amount      decimal.Decimal
	Currency    string
	PaymentURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentStatusView is the read model exposed to the reconciliation poller.
type PaymentStatusView struct {
	OrderID       string
	OrderNumber   string
	PaymentStatus PaymentStatus
	Amount        decimal.Decimal
	Currency      string
	Gateway       string
}

// ReconciliationState enumerates poller states.
type ReconciliationState string

const (
	ReconciliationLoading ReconciliationState = "loading"
	ReconciliationSuccess ReconciliationState = "success"
	ReconciliationError   ReconciliationState = "error"
	ReconciliationPending ReconciliationState = "pending"
)

// ReconciliationOutcome is the terminal result of a polling run.
type ReconciliationOutcome struct {
	State    ReconciliationState
	Reason   string
	Attempts int
	Status   PaymentStatusView
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
