package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// Coupon is a discount code. UsageLimit nil means unlimited; StartsAt and
// ExpiresAt nil leave the window open on that side.
type Coupon struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Code              string           `gorm:"uniqueIndex;not null" json:"code"`
	Description       string           `json:"description"`
	Type              string           `gorm:"type:varchar(20);not null" json:"type"`
	Value             decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"value"`
	MinOrderAmount    decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:decimal(10,2)" json:"max_discount_amount"`
	UsageLimit        *int             `json:"usage_limit"`
	UsageCount        int              `gorm:"not null;default:0" json:"usage_count"`
	StartsAt          *time.Time       `json:"starts_at"`
	ExpiresAt         *time.Time       `json:"expires_at"`
	IsActive          bool             `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (c *Coupon) TableName() string {
	return "coupons"
}

// NormalizeCouponCode is the canonical, upper-case form of a code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks whether the coupon can be applied to subtotal at now.
func (c *Coupon) Validate(subtotal decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return Rule("coupon_code", "coupon %s is not active", c.Code)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return Rule("coupon_code", "coupon %s is not valid yet", c.Code)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return Rule("coupon_code", "coupon %s has expired", c.Code)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return Rule("coupon_code", "coupon %s has reached its usage limit", c.Code)
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return Rule("coupon_code", "coupon %s requires a minimum order of %s", c.Code, c.MinOrderAmount.StringFixed(2))
	}
	return nil
}

// Discount computes the amount taken off subtotal, never more than subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case CouponTypePercentage:
		discount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsPositive() && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	case CouponTypeFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

// CheckDefinition validates the coupon's own settings before it is saved.
func (c *Coupon) CheckDefinition() error {
	switch c.Type {
	case CouponTypePercentage:
		if c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return Rule("value", "percentage cannot exceed 100")
		}
	case CouponTypeFixed:
	default:
		return Rule("type", "must be percentage or fixed")
	}
	if !c.Value.IsPositive() {
		return Rule("value", "must be greater than zero")
	}
	if c.StartsAt != nil && c.ExpiresAt != nil && !c.ExpiresAt.After(*c.StartsAt) {
		return Rule("expires_at", "must be after starts_at")
	}
	if c.UsageLimit != nil && *c.UsageLimit < c.UsageCount {
		return Rule("usage_limit", "cannot be below the current usage count (%d)", c.UsageCount)
	}
	return nil
}
