package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart belongs either to a user or to an anonymous session.
type Cart struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     *uint      `gorm:"uniqueIndex" json:"user_id"`
	SessionID  *string    `gorm:"uniqueIndex;type:varchar(64)" json:"-"`
	CouponCode string     `gorm:"type:varchar(64)" json:"coupon_code"`
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (c *Cart) TableName() string {
	return "carts"
}

type CartItem struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CartID    uint              `gorm:"not null;index" json:"cart_id"`
	ProductID uint              `gorm:"not null;index" json:"product_id"`
	Product   Product           `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int               `gorm:"not null" json:"quantity"`
	Services  []CartItemService `gorm:"foreignKey:CartItemID;constraint:OnDelete:CASCADE" json:"services"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (i *CartItem) TableName() string {
	return "cart_items"
}

// UnitPrice is the product's effective price plus every selected service.
func (i *CartItem) UnitPrice() decimal.Decimal {
	return i.Product.EffectivePrice().Add(i.servicesUnitPrice())
}

func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *CartItem) servicesUnitPrice() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range i.Services {
		sum = sum.Add(s.ProductService.Price)
	}
	return sum
}

// CartItemService is an add-on selected for a cart line, optionally with a
// preferred provider and appointment time.
type CartItemService struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	CartItemID        uint           `gorm:"not null;index" json:"cart_item_id"`
	ProductServiceID  uint           `gorm:"not null" json:"product_service_id"`
	ProductService    ProductService `gorm:"foreignKey:ProductServiceID" json:"service"`
	ServiceProviderID *uint          `json:"service_provider_id"`
	ScheduledAt       *time.Time     `json:"scheduled_at"`
}

func (s *CartItemService) TableName() string {
	return "cart_item_services"
}

// Subtotal sums every line of the cart.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range c.Items {
		sum = sum.Add(c.Items[i].LineTotal())
	}
	return sum
}

// QuantityOf returns how many units of productID the cart already holds.
func (c *Cart) QuantityOf(productID uint) int {
	n := 0
	for _, it := range c.Items {
		if it.ProductID == productID {
			n += it.Quantity
		}
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
