package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront/models"
)

// Account is a back-office login created by Seed.
type Account struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Seed fills an empty database with demo catalog data and the given
// accounts. It does nothing once any user exists and reports whether it ran.
func Seed(ctx context.Context, db *gorm.DB, accounts ...Account) (bool, error) {
	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return false, err
	}
	if users > 0 {
		return false, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range accounts {
			user := &models.User{Name: a.Name, Email: models.NormalizeEmail(a.Email), Role: a.Role}
			if err := user.SetPassword(a.Password); err != nil {
				return err
			}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", a.Email, err)
			}
		}

		home := &models.Category{Name: "Home", Slug: "home", IsActive: true}
		if err := tx.Create(home).Error; err != nil {
			return err
		}
		decor := &models.Category{Name: "Decor", Slug: "decor", ParentID: &home.ID, IsActive: true, SortOrder: 1}
		furniture := &models.Category{Name: "Furniture", Slug: "furniture", ParentID: &home.ID, IsActive: true, SortOrder: 2}
		if err := tx.Create([]*models.Category{decor, furniture}).Error; err != nil {
			return err
		}

		nordic := &models.Brand{Name: "Nordic Living", Slug: "nordic-living", IsActive: true}
		atelier := &models.Brand{Name: "Atelier Nine", Slug: "atelier-nine", IsActive: true}
		if err := tx.Create([]*models.Brand{nordic, atelier}).Error; err != nil {
			return err
		}

		assembly := &models.ProductService{
			Name:             "Assembly",
			Description:      "At-home assembly by a trained technician.",
			Price:            decimal.NewFromInt(49),
			DurationMinutes:  90,
			RequiresProvider: true,
			IsActive:         true,
		}
		giftWrap := &models.ProductService{
			Name:            "Gift wrap",
			Price:           decimal.RequireFromString("4.50"),
			DurationMinutes: 5,
			IsActive:        true,
		}
		if err := tx.Create([]*models.ProductService{assembly, giftWrap}).Error; err != nil {
			return err
		}

		provider := &models.ServiceProvider{
			Name:              "Jonas Berg",
			Email:             "jonas@example.com",
			WorkingDays:       "mon,tue,wed,thu,fri",
			StartTime:         "09:00",
			EndTime:           "17:00",
			MaxBookingsPerDay: 4,
			IsActive:          true,
			Services:          []models.ProductService{*assembly},
		}
		if err := tx.Create(provider).Error; err != nil {
			return err
		}

		sale := decimal.RequireFromString("24.90")
		products := []*models.Product{
			{
				Name:          "Stoneware Vase",
				Slug:          "stoneware-vase",
				SKU:           "DEC-VASE-01",
				Barcode:       "4006381333931",
				Price:         decimal.RequireFromString("29.90"),
				SalePrice:     &sale,
				StockQuantity: 40,
				Status:        models.ProductStatusActive,
				IsFeatured:    true,
				CategoryID:    decor.ID,
				BrandID:       &atelier.ID,
				Services:      []models.ProductService{*giftWrap},
			},
			{
				Name:          "Oak Bookshelf",
				Slug:          "oak-bookshelf",
				SKU:           "FUR-SHELF-01",
				Price:         decimal.RequireFromString("249.00"),
				StockQuantity: 8,
				Status:        models.ProductStatusActive,
				CategoryID:    furniture.ID,
				BrandID:       &nordic.ID,
				Services:      []models.ProductService{*assembly},
			},
			{
				Name:          "Linen Cushion",
				Slug:          "linen-cushion",
				SKU:           "DEC-CUSH-01",
				Price:         decimal.RequireFromString("19.00"),
				StockQuantity: 3,
				Status:        models.ProductStatusActive,
				CategoryID:    decor.ID,
				BrandID:       &nordic.ID,
			},
		}
		if err := tx.Create(products).Error; err != nil {
			return err
		}

		maxDiscount := decimal.NewFromInt(50)
		coupon := &models.Coupon{
			Code:              "WELCOME10",
			Description:       "10% off your first order",
			Type:              models.CouponTypePercentage,
			Value:             decimal.NewFromInt(10),
			MinOrderAmount:    decimal.NewFromInt(20),
			MaxDiscountAmount: &maxDiscount,
			IsActive:          true,
		}
		return tx.Create(coupon).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed database: %w", err)
	}
	return true, nil
}
