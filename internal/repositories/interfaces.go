package repositories

import (
	"context"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

// Registry exposes the repositories backing checkout orchestration.
type Registry interface {
	Close(ctx context.Context) error

	TenantConfigs() TenantConfigRepository
	ShippingZones() ShippingZoneRepository
	Communes() CommuneRepository
	Coupons() CouponRepository
	Catalog() CatalogRepository
	Orders() OrderRepository
	PaymentAttempts() PaymentAttemptRepository
}

// RepositoryError categorises persistence failures for services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TenantConfigRepository reads per-tenant checkout settings.
type TenantConfigRepository interface {
	Get(ctx context.Context, tenantID string) (domain.TenantCheckoutConfig, error)
}

// ShippingZoneRepository lists a tenant's zones ordered by position.
type ShippingZoneRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]domain.ShippingZone, error)
}

// CommuneRepository lists the delivery area directory.
type CommuneRepository interface {
	List(ctx context.Context) ([]domain.Commune, error)
}

// CouponRepository reads coupons and records redemptions.
type CouponRepository interface {
	FindByCode(ctx context.Context, tenantID, code string) (domain.Coupon, error)
	CustomerUsage(ctx context.Context, tenantID, code, customerID string) (int, error)
	// Redeem runs check against the current coupon and customer usage and, when
	// it passes, increments both counters in one atomic step. A second call for
	// the same order id returns the stored redemption with Replayed set.
	Redeem(ctx context.Context, req RedeemRequest, check RedeemCheck) (RedeemResult, error)
}

// RedeemRequest identifies a coupon use.
type RedeemRequest struct {
	TenantID   string
	Code       string
	CustomerID string
	OrderID    string
	Now        time.Time
}

// RedeemCheck validates a coupon against its live usage inside the redemption.
type RedeemCheck func(coupon domain.Coupon, customerUsage int) error

// RedeemResult is the stored redemption.
type RedeemResult struct {
	Redemption domain.CouponRedemption
	Coupon     domain.Coupon
	Replayed   bool
}

// CatalogRepository resolves variants through the catalog collaborator.
type CatalogRepository interface {
	FindVariant(ctx context.Context, tenantID, variantRef string) (domain.CatalogProduct, domain.CatalogVariant, error)
}

// OrderRepository persists orders handed to order processing.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error)
}

// PaymentAttemptRepository persists gateway redirects.
type PaymentAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.PaymentAttempt) error
	LatestForOrder(ctx context.Context, tenantID, orderID string) (domain.PaymentAttempt, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.PaymentAttempt, error)
	// Transition moves an attempt from one status to another and reports
	// false when the attempt was no longer in the from status.
	Transition(ctx context.Context, attemptID string, from, to domain.PaymentStatus, now time.Time) (bool, error)
}

// HealthRepository reports the state of downstream dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
