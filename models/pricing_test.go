package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPricingRulesCompute(t *testing.T) {
	rules := PricingRules{
		TaxRate:               d("0.10"),
		ShippingFlatRate:      d("5"),
		FreeShippingThreshold: d("100"),
	}

	testCases := []struct {
		name      string
		subtotal  string
		coupon    *Coupon
		shippable bool
		expected  Totals
	}{
		{
			name:      "Below free shipping threshold",
			subtotal:  "40",
			shippable: true,
			expected:  Totals{Subtotal: d("40"), Discount: d("0"), Tax: d("4"), Shipping: d("5"), Total: d("49")},
		},
		{
			name:      "Free shipping at threshold",
			subtotal:  "100",
			shippable: true,
			expected:  Totals{Subtotal: d("100"), Discount: d("0"), Tax: d("10"), Shipping: d("0"), Total: d("110")},
		},
		{
			name:      "Coupon reduces taxable amount",
			subtotal:  "80",
			coupon:    &Coupon{Type: CouponTypeFixed, Value: d("30")},
			shippable: true,
			expected:  Totals{Subtotal: d("80"), Discount: d("30"), Tax: d("5"), Shipping: d("5"), Total: d("60")},
		},
		{
			name:      "Not shippable",
			subtotal:  "40",
			shippable: false,
			expected:  Totals{Subtotal: d("40"), Discount: d("0"), Tax: d("4"), Shipping: d("0"), Total: d("44")},
		},
		{
			name:      "Empty cart pays nothing",
			subtotal:  "0",
			shippable: true,
			expected:  Totals{Subtotal: d("0"), Discount: d("0"), Tax: d("0"), Shipping: d("0"), Total: d("0")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.Compute(d(tc.subtotal), tc.coupon, tc.shippable)

			assert.True(t, tc.expected.Subtotal.Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, tc.expected.Discount.Equal(got.Discount), "discount %s", got.Discount)
			assert.True(t, tc.expected.Tax.Equal(got.Tax), "tax %s", got.Tax)
			assert.True(t, tc.expected.Shipping.Equal(got.Shipping), "shipping %s", got.Shipping)
			assert.True(t, tc.expected.Total.Equal(got.Total), "total %s", got.Total)

			// total = subtotal + tax + shipping - discount
			assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Tax).Add(got.Shipping).Sub(got.Discount)))
		})
	}
}

func TestFreeShippingDisabledWithoutThreshold(t *testing.T) {
	rules := PricingRules{ShippingFlatRate: d("7.5")}
	got := rules.Compute(d("1000"), nil, true)
	assert.True(t, d("7.5").Equal(got.Shipping))
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(d("19.99"), []decimal.Decimal{d("5"), d("2.50")}, 3)
	assert.True(t, d("82.47").Equal(got), "got %s", got)
}

func TestCartSubtotalUsesSalePriceAndServices(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{
			Quantity: 2,
			Product:  Product{ID: 1, Price: d("50"), SalePrice: decPtr("40")},
			Services: []CartItemService{{ProductService: ProductService{Price: d("10")}}},
		},
		{
			Quantity: 1,
			Product:  Product{ID: 2, Price: d("15")},
		},
	}}

	assert.True(t, d("115").Equal(cart.Subtotal()), "got %s", cart.Subtotal())
	assert.Equal(t, 2, cart.QuantityOf(1))
	assert.Equal(t, 0, cart.QuantityOf(3))
}

func TestProductEffectivePrice(t *testing.T) {
	testCases := []struct {
		name     string
		product  Product
		expected string
	}{
		{"No sale price", Product{Price: d("20")}, "20"},
		{"Sale price below price", Product{Price: d("20"), SalePrice: decPtr("15")}, "15"},
		{"Sale price above price is ignored", Product{Price: d("20"), SalePrice: decPtr("25")}, "20"},
		{"Zero sale price is ignored", Product{Price: d("20"), SalePrice: decPtr("0")}, "20"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, d(tc.expected).Equal(tc.product.EffectivePrice()))
		})
	}
}
