package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
	ProductStatusDraft    = "draft"
)

// Product represents a product in the catalog.
// SalePrice, when set, replaces Price at checkout.
type Product struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Name          string           `gorm:"not null" json:"name"`
	Slug          string           `gorm:"uniqueIndex;not null" json:"slug"`
	SKU           string           `gorm:"column:sku;uniqueIndex;not null" json:"sku"`
	Barcode       string           `gorm:"index" json:"barcode,omitempty"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	SalePrice     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"sale_price"`
	StockQuantity int              `gorm:"not null;default:0" json:"stock_quantity"`
	Status        string           `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsFeatured    bool             `gorm:"not null;default:false" json:"is_featured"`
	CategoryID    uint             `gorm:"not null;index" json:"category_id"`
	Category      Category         `gorm:"foreignKey:CategoryID" json:"category"`
	BrandID       *uint            `gorm:"index" json:"brand_id"`
	Brand         *Brand           `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	Services      []ProductService `gorm:"many2many:product_service_links" json:"services,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (p *Product) TableName() string {
	return "products"
}

// EffectivePrice is the unit price a customer pays.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OnSale() {
		return *p.SalePrice
	}
	return p.Price
}

// OnSale reports whether a sale price below the regular price is set.
func (p *Product) OnSale() bool {
	return p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price)
}

func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// ValidProductStatus reports whether s is a known product status.
func ValidProductStatus(s string) bool {
	switch s {
	case ProductStatusActive, ProductStatusInactive, ProductStatusDraft:
		return true
	}
	return false
}
