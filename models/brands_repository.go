package models

import (
	"context"

	"gorm.io/gorm"
)

type BrandsRepository struct {
	db *gorm.DB
}

func NewBrandsRepository(db *gorm.DB) *BrandsRepository {
	return &BrandsRepository{db: db}
}

func (r *BrandsRepository) ListBrands(ctx context.Context, offset, limit int, search string, activeOnly bool) ([]Brand, int64, error) {
	var brands []Brand
	var total int64

	query := r.db.WithContext(ctx).Model(&Brand{})
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&brands).Error; err != nil {
		return nil, 0, err
	}

	if len(brands) > 0 {
		ids := make([]uint, len(brands))
		for i, b := range brands {
			ids[i] = b.ID
		}
		type count struct {
			BrandID uint
			N       int64
		}
		var counts []count
		if err := r.db.WithContext(ctx).Model(&Product{}).
			Select("brand_id, COUNT(*) AS n").
			Where("brand_id IN ?", ids).
			Group("brand_id").
			Scan(&counts).Error; err != nil {
			return nil, 0, err
		}
		byID := make(map[uint]int64, len(counts))
		for _, c := range counts {
			byID[c.BrandID] = c.N
		}
		for i := range brands {
			brands[i].ProductsCount = byID[brands[i].ID]
		}
	}
	return brands, total, nil
}

func (r *BrandsRepository) GetBrand(ctx context.Context, id uint) (*Brand, error) {
	var brand Brand
	if err := r.db.WithContext(ctx).First(&brand, id).Error; err != nil {
		return nil, notFound(err, ErrBrandNotFound)
	}
	return &brand, nil
}

func (r *BrandsRepository) SaveBrand(ctx context.Context, brand *Brand) error {
	var clash int64
	if err := r.db.WithContext(ctx).Model(&Brand{}).
		Where("slug = ? AND id <> ?", brand.Slug, brand.ID).
		Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		return Rule("slug", "slug %q is already taken", brand.Slug)
	}
	return r.db.WithContext(ctx).Save(brand).Error
}

// DeleteBrand refuses while any product, including soft-deleted ones, references the brand.
func (r *BrandsRepository) DeleteBrand(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var brand Brand
		if err := tx.First(&brand, id).Error; err != nil {
			return notFound(err, ErrBrandNotFound)
		}
		var products int64
		if err := tx.Unscoped().Model(&Product{}).Where("brand_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return Rule("brand", "cannot delete %s: it has %d products", brand.Name, products)
		}
		return tx.Delete(&brand).Error
	})
}
