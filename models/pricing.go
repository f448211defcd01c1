package models

import "github.com/shopspring/decimal"

// PricingRules holds the store-wide tax and shipping settings.
// A zero FreeShippingThreshold disables free shipping.
type PricingRules struct {
	TaxRate               decimal.Decimal
	ShippingFlatRate      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Totals is the money breakdown shared by carts and orders.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Compute derives the totals for subtotal. coupon may be nil. Tax applies to
// the discounted subtotal; shipping is only charged on shippable, non-empty
// orders below the free shipping threshold.
func (p PricingRules) Compute(subtotal decimal.Decimal, coupon *Coupon, shippable bool) Totals {
	t := Totals{Subtotal: subtotal.Round(2)}
	if coupon != nil {
		t.Discount = coupon.Discount(t.Subtotal)
	}

	taxable := t.Subtotal.Sub(t.Discount)
	t.Tax = taxable.Mul(p.TaxRate).Round(2)

	switch {
	case !shippable || !t.Subtotal.IsPositive():
		t.Shipping = decimal.Zero
	case p.FreeShippingThreshold.IsPositive() && t.Subtotal.GreaterThanOrEqual(p.FreeShippingThreshold):
		t.Shipping = decimal.Zero
	default:
		t.Shipping = p.ShippingFlatRate.Round(2)
	}

	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax).Add(t.Shipping)
	return t
}

// LineTotal is unit price plus per-unit service prices, times quantity.
func LineTotal(unitPrice decimal.Decimal, servicePrices []decimal.Decimal, quantity int) decimal.Decimal {
	unit := unitPrice
	for _, sp := range servicePrices {
		unit = unit.Add(sp)
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
