package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxPrecision bounds the number of decimal places a tenant currency may use.
const MaxPrecision int32 = 4

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds a non-negative amount half-up to the given decimal places.
func RoundMoney(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Round(precision)
}

// Percent returns amount * rate / 100 without rounding.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// MinorUnits converts an amount to an integer count of minor units for the precision.
func MinorUnits(amount decimal.Decimal, precision int32) int64 {
	return amount.Round(precision).Shift(precision).IntPart()
}

// NormalizeCouponCode returns the canonical form used for coupon lookups.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
