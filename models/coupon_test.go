package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCouponValidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	testCases := []struct {
		name        string
		coupon      Coupon
		subtotal    string
		expectedErr string
	}{
		{
			name:     "Valid coupon",
			coupon:   Coupon{Code: "SAVE10", IsActive: true, MinOrderAmount: decimal.NewFromInt(50)},
			subtotal: "80",
		},
		{
			name:        "Inactive coupon",
			coupon:      Coupon{Code: "OFF", IsActive: false},
			subtotal:    "80",
			expectedErr: "coupon_code: coupon OFF is not active",
		},
		{
			name:        "Not started yet",
			coupon:      Coupon{Code: "SOON", IsActive: true, StartsAt: &tomorrow},
			subtotal:    "80",
			expectedErr: "coupon_code: coupon SOON is not valid yet",
		},
		{
			name:        "Expired",
			coupon:      Coupon{Code: "OLD", IsActive: true, ExpiresAt: &yesterday},
			subtotal:    "80",
			expectedErr: "coupon_code: coupon OLD has expired",
		},
		{
			name:        "Usage limit reached",
			coupon:      Coupon{Code: "ONCE", IsActive: true, UsageLimit: intPtr(1), UsageCount: 1},
			subtotal:    "80",
			expectedErr: "coupon_code: coupon ONCE has reached its usage limit",
		},
		{
			name:        "Below minimum order amount",
			coupon:      Coupon{Code: "BIG", IsActive: true, MinOrderAmount: decimal.NewFromInt(100)},
			subtotal:    "99.99",
			expectedErr: "coupon_code: coupon BIG requires a minimum order of 100.00",
		},
		{
			name:     "Exactly the minimum order amount",
			coupon:   Coupon{Code: "EDGE", IsActive: true, MinOrderAmount: decimal.NewFromInt(100)},
			subtotal: "100",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.coupon.Validate(decimal.RequireFromString(tc.subtotal), now)
			if tc.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.expectedErr)
			assert.True(t, IsRuleError(err))
		})
	}
}

func TestCouponDiscount(t *testing.T) {
	testCases := []struct {
		name     string
		coupon   Coupon
		subtotal string
		expected string
	}{
		{"Percentage", Coupon{Type: CouponTypePercentage, Value: decimal.NewFromInt(10)}, "250", "25"},
		{"Percentage rounds to cents", Coupon{Type: CouponTypePercentage, Value: decimal.NewFromInt(15)}, "33.33", "5"},
		{"Percentage capped", Coupon{Type: CouponTypePercentage, Value: decimal.NewFromInt(50), MaxDiscountAmount: decPtr("20")}, "100", "20"},
		{"Fixed", Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(15)}, "100", "15"},
		{"Fixed never exceeds subtotal", Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(150)}, "100", "100"},
		{"Zero subtotal", Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(10)}, "0", "0"},
		{"Unknown type", Coupon{Type: "bogus", Value: decimal.NewFromInt(10)}, "100", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.coupon.Discount(decimal.RequireFromString(tc.subtotal))
			assert.True(t, decimal.RequireFromString(tc.expected).Equal(got), "got %s", got)
		})
	}
}

func TestCouponCheckDefinition(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	assert.NoError(t, (&Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(5)}).CheckDefinition())
	assert.EqualError(t, (&Coupon{Type: "x", Value: decimal.NewFromInt(5)}).CheckDefinition(), "type: must be percentage or fixed")
	assert.EqualError(t, (&Coupon{Type: CouponTypePercentage, Value: decimal.NewFromInt(101)}).CheckDefinition(), "value: percentage cannot exceed 100")
	assert.EqualError(t, (&Coupon{Type: CouponTypeFixed, Value: decimal.Zero}).CheckDefinition(), "value: must be greater than zero")
	assert.EqualError(t, (&Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(1), StartsAt: &start, ExpiresAt: &end}).CheckDefinition(), "expires_at: must be after starts_at")
	assert.EqualError(t, (&Coupon{Type: CouponTypeFixed, Value: decimal.NewFromInt(1), UsageLimit: intPtr(2), UsageCount: 3}).CheckDefinition(), "usage_limit: cannot be below the current usage count (3)")
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "SUMMER25", NormalizeCouponCode("  summer25 "))
}
