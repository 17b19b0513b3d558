package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCoupon marks a stored coupon record that breaks the coupon model.
var ErrInvalidCoupon = errors.New("coupon: invalid definition")

// ParseDiscountType maps a stored discount type to its canonical value.
// Matching ignores case and surrounding spaces.
func ParseDiscountType(raw string) (DiscountType, bool) {
	switch kind := DiscountType(strings.ToLower(strings.TrimSpace(raw))); kind {
	case DiscountTypePercentage, DiscountTypeFixedAmount:
		return kind, true
	}
	return DiscountType(raw), false
}

// Validate checks the static invariants of a coupon record.
func (c Coupon) Validate() error {
	switch {
	case NormalizeCouponCode(c.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidCoupon)
	case c.DiscountType != DiscountTypePercentage && c.DiscountType != DiscountTypeFixedAmount:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, c.DiscountType)
	case c.DiscountValue.IsNegative():
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidCoupon)
	case c.MaximumDiscountAmount != nil && c.MaximumDiscountAmount.IsNegative():
		return fmt.Errorf("%w: maximum discount must not be negative", ErrInvalidCoupon)
	case !c.ValidUntil.After(c.ValidFrom):
		return fmt.Errorf("%w: validUntil must be after validFrom", ErrInvalidCoupon)
	}
	return nil
}
