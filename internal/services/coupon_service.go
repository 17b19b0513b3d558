package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

var (
	// ErrCouponInvalidInput indicates a missing tenant, code or order reference.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates no coupon exists for the tenant and code.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponUnavailable indicates the coupon store could not be reached.
	ErrCouponUnavailable = errors.New("coupon: unavailable")
)

// CouponServiceDeps wires the coupon service.
type CouponServiceDeps struct {
	Coupons       repositories.CouponRepository
	TenantConfigs repositories.TenantConfigRepository
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	configs repositories.TenantConfigRepository
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

var _ CouponService = (*couponService)(nil)

// NewCouponService constructs a CouponService. TenantConfigs is optional; when
// present, discounts are rounded to the tenant currency precision.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &couponService{
		coupons: deps.Coupons,
		configs: deps.TenantConfigs,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ApplyCoupon validates the coupon optimistically against the usage counts
// currently stored. Nothing is consumed.
func (s *couponService) ApplyCoupon(ctx context.Context, cmd ApplyCouponCommand) (CouponApplication, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	code := domain.NormalizeCouponCode(cmd.Code)
	if tenantID == "" || code == "" || cmd.CartSubtotal.IsNegative() {
		return CouponApplication{}, ErrCouponInvalidInput
	}

	coupon, err := s.coupons.FindByCode(ctx, tenantID, code)
	if err != nil {
		return CouponApplication{}, s.translate(ctx, "coupon.lookup_failed", code, err)
	}

	usage := 0
	if customerID := strings.TrimSpace(cmd.CustomerID); customerID != "" && coupon.MaxUsesPerCustomer != nil {
		usage, err = s.coupons.CustomerUsage(ctx, tenantID, code, customerID)
		if err != nil {
			return CouponApplication{}, s.translate(ctx, "coupon.usage_lookup_failed", code, err)
		}
	}

	discount, err := ValidateCoupon(coupon, cmd.CartSubtotal, usage, s.now())
	if err != nil {
		s.logger(ctx, "coupon.rejected", map[string]any{
			"code":   code,
			"reason": CouponErrorKind(err),
		})
		return CouponApplication{}, err
	}

	precision, err := s.precision(ctx, tenantID)
	if err != nil {
		return CouponApplication{}, err
	}
	return CouponApplication{
		Code:           code,
		DiscountAmount: domain.RoundMoney(discount, precision),
		Coupon:         coupon,
	}, nil
}

// Redeem consumes one use of a coupon for an order. Both usage limits are
// re-checked against live counts inside the repository's atomic step, so two
// orders racing for the last use cannot both succeed.
func (s *couponService) Redeem(ctx context.Context, cmd RedeemCouponCommand) (CouponRedemption, error) {
	tenantID := strings.TrimSpace(cmd.TenantID)
	code := domain.NormalizeCouponCode(cmd.Code)
	orderID := strings.TrimSpace(cmd.OrderID)
	if tenantID == "" || code == "" || orderID == "" || cmd.CartSubtotal.IsNegative() {
		return CouponRedemption{}, ErrCouponInvalidInput
	}

	now := s.now()
	req := repositories.RedeemRequest{
		TenantID:   tenantID,
		Code:       code,
		CustomerID: strings.TrimSpace(cmd.CustomerID),
		OrderID:    orderID,
		Now:        now,
	}
	result, err := s.coupons.Redeem(ctx, req, func(coupon domain.Coupon, customerUsage int) error {
		_, err := ValidateCoupon(coupon, cmd.CartSubtotal, customerUsage, now)
		return err
	})
	if err != nil {
		if kind := CouponErrorKind(err); kind != "" {
			s.logger(ctx, "coupon.redeem_rejected", map[string]any{
				"code":    code,
				"orderId": orderID,
				"reason":  kind,
			})
			return CouponRedemption{}, err
		}
		return CouponRedemption{}, s.translate(ctx, "coupon.redeem_failed", code, err)
	}

	s.logger(ctx, "coupon.redeemed", map[string]any{
		"code":      code,
		"orderId":   orderID,
		"timesUsed": result.Coupon.TimesUsed,
		"replayed":  result.Replayed,
	})
	return CouponRedemption{
		Code:       code,
		OrderID:    orderID,
		CustomerID: result.Redemption.CustomerID,
		TimesUsed:  result.Coupon.TimesUsed,
		RedeemedAt: result.Redemption.RedeemedAt,
		Replayed:   result.Replayed,
	}, nil
}

func (s *couponService) precision(ctx context.Context, tenantID string) (int32, error) {
	if s.configs == nil {
		return domain.MaxPrecision, nil
	}
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return 0, ErrCouponInvalidInput
		}
		return 0, s.translate(ctx, "coupon.tenant_lookup_failed", "", err)
	}
	return cfg.Precision, nil
}

func (s *couponService) translate(ctx context.Context, event, code string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.IsNotFound(err):
		return ErrCouponNotFound
	case errors.Is(err, ErrCouponMisconfigured):
		s.logger(ctx, event, map[string]any{
			"code":  code,
			"error": err.Error(),
		})
		return ErrCouponMisconfigured
	}
	s.logger(ctx, event, map[string]any{
		"code":  code,
		"error": err.Error(),
	})
	return ErrCouponUnavailable
}
