package services

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

// ErrPricingInvalidInput reports negative amounts or an unsupported precision.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

var one = decimal.NewFromInt(1)

// TotalsInput carries the figures combined into OrderTotals.
type TotalsInput struct {
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	ShippingCost     decimal.Decimal
	TaxRate          decimal.Decimal
	PricesIncludeTax bool
	Precision        int32
}

// ComputeTotals combines subtotal, discount, shipping and tax.
//
// Each derived field is rounded half-up exactly once. Under tax-inclusive
// pricing the disclosed tax is extracted from the subtotal and not added
// again; Subtotal is then reported net of it so that
// Total == Subtotal - DiscountAmount + ShippingCost + TaxAmount holds in both
// regimes.
func ComputeTotals(in TotalsInput) (domain.OrderTotals, error) {
	if in.Precision < 0 || in.Precision > domain.MaxPrecision {
		return domain.OrderTotals{}, ErrPricingInvalidInput
	}
	if in.Subtotal.IsNegative() || in.DiscountAmount.IsNegative() || in.ShippingCost.IsNegative() || in.TaxRate.IsNegative() {
		return domain.OrderTotals{}, ErrPricingInvalidInput
	}

	p := in.Precision
	gross := domain.RoundMoney(in.Subtotal, p)
	discount := domain.RoundMoney(clampDiscount(in.DiscountAmount, in.Subtotal), p)
	shipping := domain.RoundMoney(in.ShippingCost, p)

	if in.PricesIncludeTax {
		divisor := one.Add(in.TaxRate.Div(hundredPercent))
		tax := domain.RoundMoney(in.Subtotal.Sub(in.Subtotal.Div(divisor)), p)
		return domain.OrderTotals{
			Subtotal:       gross.Sub(tax),
			GrossSubtotal:  gross,
			DiscountAmount: discount,
			ShippingCost:   shipping,
			TaxAmount:      tax,
			Total:          gross.Sub(discount).Add(shipping),
			TaxIncluded:    true,
		}, nil
	}

	tax := domain.RoundMoney(domain.Percent(in.Subtotal.Sub(clampDiscount(in.DiscountAmount, in.Subtotal)), in.TaxRate), p)
	return domain.OrderTotals{
		Subtotal:       gross,
		GrossSubtotal:  gross,
		DiscountAmount: discount,
		ShippingCost:   shipping,
		TaxAmount:      tax,
		Total:          gross.Sub(discount).Add(shipping).Add(tax),
	}, nil
}

var hundredPercent = decimal.NewFromInt(100)
