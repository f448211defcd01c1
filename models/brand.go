package models

import "time"

// Brand is a flat product taxonomy next to categories.
type Brand struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logo_url"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ProductsCount int64 `gorm:"-" json:"products_count"`
}

func (b *Brand) TableName() string {
	return "brands"
}
