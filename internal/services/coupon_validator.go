package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

var (
	// ErrCouponInactive indicates the coupon is switched off.
	ErrCouponInactive = errors.New("coupon: inactive")
	// ErrCouponOutOfWindow indicates now falls outside the validity window.
	ErrCouponOutOfWindow = errors.New("coupon: outside validity window")
	// ErrCouponGloballyExhausted indicates the global use limit is reached.
	ErrCouponGloballyExhausted = errors.New("coupon: usage limit reached")
	// ErrCouponPerCustomerExhausted indicates the customer used the coupon up.
	ErrCouponPerCustomerExhausted = errors.New("coupon: customer usage limit reached")
	// ErrCouponBelowMinimum indicates the cart subtotal is under the minimum purchase.
	ErrCouponBelowMinimum = errors.New("coupon: below minimum purchase")
	// ErrCouponMisconfigured indicates the stored coupon record is unusable.
	ErrCouponMisconfigured = domain.ErrInvalidCoupon
)

// ValidateCoupon applies the coupon rules in order and returns the discount
// for cartSubtotal. The first failing rule wins. The discount is never
// negative and never exceeds the subtotal.
func ValidateCoupon(coupon domain.Coupon, cartSubtotal decimal.Decimal, customerUsageCount int, now time.Time) (decimal.Decimal, error) {
	if !coupon.IsActive {
		return decimal.Zero, ErrCouponInactive
	}
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return decimal.Zero, ErrCouponOutOfWindow
	}
	if coupon.MaxUses != nil && coupon.TimesUsed >= *coupon.MaxUses {
		return decimal.Zero, ErrCouponGloballyExhausted
	}
	if coupon.MaxUsesPerCustomer != nil && customerUsageCount >= *coupon.MaxUsesPerCustomer {
		return decimal.Zero, ErrCouponPerCustomerExhausted
	}
	if coupon.MinimumPurchaseAmount != nil && cartSubtotal.LessThan(*coupon.MinimumPurchaseAmount) {
		return decimal.Zero, ErrCouponBelowMinimum
	}

	kind, _ := domain.ParseDiscountType(string(coupon.DiscountType))
	var discount decimal.Decimal
	switch kind {
	case domain.DiscountTypePercentage:
		discount = domain.Percent(cartSubtotal, coupon.DiscountValue)
		if coupon.MaximumDiscountAmount != nil {
			discount = decimal.Min(discount, *coupon.MaximumDiscountAmount)
		}
	case domain.DiscountTypeFixedAmount:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown discount type %q", ErrCouponMisconfigured, coupon.DiscountType)
	}
	return clampDiscount(discount, cartSubtotal), nil
}

func clampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsNegative() {
		return decimal.Zero
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, subtotal)
}

// CouponErrorKind maps a coupon rule error to its wire code. It returns ""
// for errors that are not coupon rule failures.
func CouponErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrCouponInactive):
		return "coupon_inactive"
	case errors.Is(err, ErrCouponOutOfWindow):
		return "coupon_out_of_window"
	case errors.Is(err, ErrCouponGloballyExhausted):
		return "coupon_globally_exhausted"
	case errors.Is(err, ErrCouponPerCustomerExhausted):
		return "coupon_per_customer_exhausted"
	case errors.Is(err, ErrCouponBelowMinimum):
		return "coupon_below_minimum"
	case errors.Is(err, ErrCouponMisconfigured):
		return "coupon_misconfigured"
	}
	return ""
}

// ValidateCouponDefinition checks the static invariants of a coupon record.
func ValidateCouponDefinition(coupon domain.Coupon) error {
	return coupon.Validate()
}
