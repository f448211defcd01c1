package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront/models"
)

type CouponFinder interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type ItemService struct {
	ID          uint            `json:"id"`
	ServiceID   uint            `json:"service_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ProviderID  *uint           `json:"provider_id"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
}

type Item struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available int             `json:"available"`
	Services  []ItemService   `json:"services"`
}

// Summary is the priced view of a cart. CouponError explains why a stored
// coupon was not applied.
type Summary struct {
	Items       []Item `json:"items"`
	ItemCount   int    `json:"item_count"`
	CouponCode  string `json:"coupon_code,omitempty"`
	CouponError string `json:"coupon_error,omitempty"`
	models.Totals
}

// Summarize prices c with the current coupon and pricing rules. It returns the
// coupon that was applied, if any.
func Summarize(ctx context.Context, c *models.Cart, coupons CouponFinder, rules models.PricingRules, now time.Time) (*Summary, *models.Coupon, error) {
	s := &Summary{
		Items:      make([]Item, 0, len(c.Items)),
		CouponCode: c.CouponCode,
	}
	for i := range c.Items {
		it := &c.Items[i]
		item := Item{
			ID:        it.ID,
			ProductID: it.ProductID,
			Slug:      it.Product.Slug,
			Name:      it.Product.Name,
			SKU:       it.Product.SKU,
			UnitPrice: it.UnitPrice(),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
			Available: it.Product.StockQuantity,
			Services:  make([]ItemService, 0, len(it.Services)),
		}
		for _, svc := range it.Services {
			item.Services = append(item.Services, ItemService{
				ID:          svc.ID,
				ServiceID:   svc.ProductServiceID,
				Name:        svc.ProductService.Name,
				Price:       svc.ProductService.Price,
				ProviderID:  svc.ServiceProviderID,
				ScheduledAt: svc.ScheduledAt,
			})
		}
		s.Items = append(s.Items, item)
		s.ItemCount += it.Quantity
	}

	subtotal := c.Subtotal()
	coupon, err := resolveCoupon(ctx, coupons, c.CouponCode, subtotal, now)
	var rule *models.RuleError
	switch {
	case errors.As(err, &rule):
		s.CouponError = rule.Message
		coupon = nil
	case err != nil:
		return nil, nil, err
	}

	s.Totals = rules.Compute(subtotal, coupon, true)
	return s, coupon, nil
}

// resolveCoupon loads code and checks it against subtotal. Unknown or
// unusable codes are reported as rule errors.
func resolveCoupon(ctx context.Context, coupons CouponFinder, code string, subtotal decimal.Decimal, now time.Time) (*models.Coupon, error) {
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return nil, nil
	}
	coupon, err := coupons.GetByCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.Rule("coupon_code", "coupon %s does not exist", code)
	}
	if err != nil {
		return nil, err
	}
	if err := coupon.Validate(subtotal, now); err != nil {
		return nil, err
	}
	return coupon, nil
}
