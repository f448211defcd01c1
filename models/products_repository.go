package models

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductsRepository struct {
	db *gorm.DB
}

const effectivePriceSQL = "CASE WHEN products.sale_price > 0 AND products.sale_price < products.price THEN products.sale_price ELSE products.price END"

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// ProductFilters narrows product listings. Zero values disable a filter.
type ProductFilters struct {
	Search            string
	CategoryIDs       []uint
	BrandID           *uint
	BrandSlug         string
	Status            string
	MinPrice          *decimal.Decimal
	MaxPrice          *decimal.Decimal
	InStock           bool
	FeaturedOnly      bool
	Stock             string // "low" or "out"
	LowStockThreshold int
	Sort              string
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

func (r *ProductsRepository) GetFilteredProducts(ctx context.Context, offset, limit int, filters ProductFilters) ([]Product, int64, error) {
	var products []Product
	var total int64

	query := r.db.WithContext(ctx).Model(&Product{})

	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where("products.name ILIKE ? OR products.sku ILIKE ?", like, like)
	}
	if len(filters.CategoryIDs) > 0 {
		query = query.Where("products.category_id IN ?", filters.CategoryIDs)
	}
	if filters.BrandID != nil {
		query = query.Where("products.brand_id = ?", *filters.BrandID)
	}
	if filters.BrandSlug != "" {
		query = query.Joins("JOIN brands ON brands.id = products.brand_id").
			Where("brands.slug = ?", filters.BrandSlug)
	}
	if filters.Status != "" {
		query = query.Where("products.status = ?", filters.Status)
	}
	if filters.MinPrice != nil {
		query = query.Where(effectivePriceSQL+" >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where(effectivePriceSQL+" <= ?", *filters.MaxPrice)
	}
	if filters.InStock {
		query = query.Where("products.stock_quantity > 0")
	}
	if filters.FeaturedOnly {
		query = query.Where("products.is_featured = ?", true)
	}
	switch filters.Stock {
	case "out":
		query = query.Where("products.stock_quantity = 0")
	case "low":
		query = query.Where("products.stock_quantity > 0 AND products.stock_quantity <= ?", filters.LowStockThreshold)
	}

	// Count total after filtering
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// products.id breaks ties so pages never repeat or skip rows.
	switch filters.Sort {
	case SortPriceAsc:
		query = query.Order(effectivePriceSQL + " ASC, products.id ASC")
	case SortPriceDesc:
		query = query.Order(effectivePriceSQL + " DESC, products.id ASC")
	case SortName:
		query = query.Order("products.name ASC, products.id ASC")
	default:
		query = query.Order("products.created_at DESC, products.id DESC")
	}

	if err := query.
		Preload("Category").
		Preload("Brand").
		Offset(offset).
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// GetBySlug loads an active product with its taxonomy and active add-on services.
func (r *ProductsRepository) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Services", "is_active = ?", true).
		Where("slug = ? AND status = ?", slug, ProductStatusActive).
		First(&product).Error; err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return &product, nil
}

func (r *ProductsRepository) GetByID(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Services").
		First(&product, id).Error; err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return &product, nil
}

// GetByIDs returns the products found among ids, keyed by id.
func (r *ProductsRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]Product, error) {
	var products []Product
	if len(ids) == 0 {
		return map[uint]Product{}, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductsRepository) CreateProduct(ctx context.Context, p *Product) error {
	if err := r.checkProduct(ctx, p); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit("Category", "Brand", "Services").Create(p).Error
}

func (r *ProductsRepository) UpdateProduct(ctx context.Context, p *Product) error {
	if err := r.checkProduct(ctx, p); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit("Category", "Brand", "Services").Save(p).Error
}

// DeleteProduct soft deletes the product; order history keeps its snapshot.
func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AdjustStock applies a signed delta; the result may not drop below zero.
func (r *ProductsRepository) AdjustStock(ctx context.Context, id uint, delta int) (*Product, error) {
	var product Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		next := product.StockQuantity + delta
		if next < 0 {
			return Rule("stock_quantity", "stock cannot go below zero (current %d)", product.StockQuantity)
		}
		product.StockQuantity = next
		return tx.Model(&product).Update("stock_quantity", next).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SetStock overwrites the stock level with an absolute quantity.
func (r *ProductsRepository) SetStock(ctx context.Context, id uint, quantity int) (*Product, error) {
	if quantity < 0 {
		return nil, Rule("quantity", "must not be negative")
	}
	var product Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			return notFound(err, ErrProductNotFound)
		}
		product.StockQuantity = quantity
		return tx.Model(&product).Update("stock_quantity", quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SyncServices replaces the add-on services attached to a product.
func (r *ProductsRepository) SyncServices(ctx context.Context, productID uint, serviceIDs []uint) (*Product, error) {
	product, err := r.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	var services []ProductService
	if len(serviceIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", serviceIDs).Find(&services).Error; err != nil {
			return nil, err
		}
		if len(services) != len(uniqueIDs(serviceIDs)) {
			return nil, Rule("service_ids", "one or more services do not exist")
		}
	}

	if err := r.db.WithContext(ctx).Model(product).Association("Services").Replace(services); err != nil {
		return nil, err
	}
	product.Services = services
	return product, nil
}

// SearchForPOS finds active, in-stock products by name, sku or barcode.
func (r *ProductsRepository) SearchForPOS(ctx context.Context, q string, limit int) ([]Product, error) {
	var products []Product
	query := r.db.WithContext(ctx).
		Where("status = ? AND stock_quantity > 0", ProductStatusActive)
	if q != "" {
		like := "%" + q + "%"
		query = query.Where("name ILIKE ? OR sku ILIKE ? OR barcode = ?", like, like, q)
	}
	if err := query.Order("name ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// LowStock lists active products at or below threshold, emptiest first.
func (r *ProductsRepository) LowStock(ctx context.Context, threshold, limit int) ([]Product, error) {
	var products []Product
	if err := r.db.WithContext(ctx).
		Where("status = ? AND stock_quantity <= ?", ProductStatusActive, threshold).
		Order("stock_quantity ASC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// checkProduct enforces unique sku and slug and that the taxonomy exists.
func (r *ProductsRepository) checkProduct(ctx context.Context, p *Product) error {
	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&Category{}).Where("id = ?", p.CategoryID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return Rule("category_id", "category %d does not exist", p.CategoryID)
	}
	if p.BrandID != nil {
		if err := db.Model(&Brand{}).Where("id = ?", *p.BrandID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return Rule("brand_id", "brand %d does not exist", *p.BrandID)
		}
	}

	var existing Product
	err := r.db.WithContext(ctx).Unscoped().
		Where("(sku = ? OR slug = ?) AND id <> ?", p.SKU, p.Slug, p.ID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.SKU == p.SKU {
		return Rule("sku", "sku %q is already taken", p.SKU)
	}
	return Rule("slug", "slug %q is already taken", p.Slug)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
