package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDiscountType(t *testing.T) {
	cases := []struct {
		raw  string
		want DiscountType
		ok   bool
	}{
		{"percentage", DiscountTypePercentage, true},
		{"Percentage", DiscountTypePercentage, true},
		{" fixed_amount ", DiscountTypeFixedAmount, true},
		{"FIXED_AMOUNT", DiscountTypeFixedAmount, true},
		{"fixed", "fixed", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDiscountType(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseDiscountType(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCouponValidate(t *testing.T) {
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	valid := Coupon{
		Code:          "DIEZ",
		DiscountType:  DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     from,
		ValidUntil:    from.Add(24 * time.Hour),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid coupon, got %v", err)
	}

	negativeCap := decimal.NewFromInt(-1)
	cases := map[string]func(*Coupon){
		"missing code":     func(c *Coupon) { c.Code = " " },
		"unknown type":     func(c *Coupon) { c.DiscountType = "Percentage" },
		"negative value":   func(c *Coupon) { c.DiscountValue = decimal.NewFromInt(-5) },
		"negative cap":     func(c *Coupon) { c.MaximumDiscountAmount = &negativeCap },
		"inverted window":  func(c *Coupon) { c.ValidUntil = c.ValidFrom.Add(-time.Hour) },
		"zero-length span": func(c *Coupon) { c.ValidUntil = c.ValidFrom },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			coupon := valid
			mutate(&coupon)
			if err := coupon.Validate(); !errors.Is(err, ErrInvalidCoupon) {
				t.Fatalf("expected ErrInvalidCoupon, got %v", err)
			}
		})
	}
}
