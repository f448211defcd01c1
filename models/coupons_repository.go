package models

import (
	"context"

	"gorm.io/gorm"
)

type CouponsRepository struct {
	db *gorm.DB
}

type CouponFilters struct {
	Search string
	Active *bool
}

func NewCouponsRepository(db *gorm.DB) *CouponsRepository {
	return &CouponsRepository{db: db}
}

func (r *CouponsRepository) ListCoupons(ctx context.Context, offset, limit int, filters CouponFilters) ([]Coupon, int64, error) {
	var coupons []Coupon
	var total int64

	query := r.db.WithContext(ctx).Model(&Coupon{})
	if filters.Search != "" {
		query = query.Where("code ILIKE ?", "%"+filters.Search+"%")
	}
	if filters.Active != nil {
		query = query.Where("is_active = ?", *filters.Active)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&coupons).Error; err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

func (r *CouponsRepository) GetCoupon(ctx context.Context, id uint) (*Coupon, error) {
	var coupon Coupon
	if err := r.db.WithContext(ctx).First(&coupon, id).Error; err != nil {
		return nil, notFound(err, ErrCouponNotFound)
	}
	return &coupon, nil
}

func (r *CouponsRepository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var coupon Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", NormalizeCouponCode(code)).First(&coupon).Error; err != nil {
		return nil, notFound(err, ErrCouponNotFound)
	}
	return &coupon, nil
}

func (r *CouponsRepository) SaveCoupon(ctx context.Context, coupon *Coupon) error {
	coupon.Code = NormalizeCouponCode(coupon.Code)
	var clash int64
	if err := r.db.WithContext(ctx).Model(&Coupon{}).
		Where("code = ? AND id <> ?", coupon.Code, coupon.ID).
		Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		return Rule("code", "code %q is already taken", coupon.Code)
	}
	return r.db.WithContext(ctx).Save(coupon).Error
}

func (r *CouponsRepository) DeleteCoupon(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Coupon{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// redeemCoupon bumps usage inside an order transaction. The guarded update
// keeps usage_count within usage_limit under concurrent checkouts.
func redeemCoupon(tx *gorm.DB, couponID uint) error {
	res := tx.Model(&Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", couponID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Rule("coupon_code", "coupon has reached its usage limit")
	}
	return nil
}

func releaseCoupon(tx *gorm.DB, couponID uint) error {
	return tx.Model(&Coupon{}).
		Where("id = ? AND usage_count > 0", couponID).
		UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error
}
