package memory

import (
	"context"
	"strings"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
)

type couponRecord struct {
	coupon      domain.Coupon
	customers   map[string]int
	redemptions map[string]domain.CouponRedemption
}

// PutCoupon stores a coupon under its normalised code.
func (s *Store) PutCoupon(tenantID string, coupon domain.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	s.coupons[scopedKey(tenantID, coupon.Code)] = &couponRecord{
		coupon:      coupon,
		customers:   make(map[string]int),
		redemptions: make(map[string]domain.CouponRedemption),
	}
}

type couponRepo struct{ s *Store }

func (r couponRepo) FindByCode(_ context.Context, tenantID, code string) (domain.Coupon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.coupons[scopedKey(tenantID, domain.NormalizeCouponCode(code))]
	if !ok {
		return domain.Coupon{}, repositories.NotFound("coupons.findByCode")
	}
	return rec.coupon, nil
}

func (r couponRepo) CustomerUsage(_ context.Context, tenantID, code, customerID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.coupons[scopedKey(tenantID, domain.NormalizeCouponCode(code))]
	if !ok {
		return 0, repositories.NotFound("coupons.customerUsage")
	}
	return rec.customers[strings.TrimSpace(customerID)], nil
}

// Redeem checks and increments under the store's write lock, which makes the
// check and both counter updates one step for concurrent callers.
func (r couponRepo) Redeem(_ context.Context, req repositories.RedeemRequest, check repositories.RedeemCheck) (repositories.RedeemResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.coupons[scopedKey(req.TenantID, domain.NormalizeCouponCode(req.Code))]
	if !ok {
		return repositories.RedeemResult{}, repositories.NotFound("coupons.redeem")
	}
	if prior, done := rec.redemptions[req.OrderID]; done {
		return repositories.RedeemResult{Redemption: prior, Coupon: rec.coupon, Replayed: true}, nil
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if check != nil {
		if err := check(rec.coupon, rec.customers[customerID]); err != nil {
			return repositories.RedeemResult{}, err
		}
	}

	now := utc(req.Now)
	rec.coupon.TimesUsed++
	rec.coupon.UpdatedAt = now
	if customerID != "" {
		rec.customers[customerID]++
	}
	redemption := domain.CouponRedemption{
		TenantID:   strings.TrimSpace(req.TenantID),
		Code:       rec.coupon.Code,
		CustomerID: customerID,
		OrderID:    req.OrderID,
		RedeemedAt: now,
	}
	rec.redemptions[req.OrderID] = redemption
	return repositories.RedeemResult{Redemption: redemption, Coupon: rec.coupon}, nil
}
