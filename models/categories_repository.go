package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type CategoriesRepository struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{db: db}
}

// GetAllCategories returns every category ordered for display, with the
// number of (non-deleted) products in each.
func (r *CategoriesRepository) GetAllCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	var categories []Category
	query := r.db.WithContext(ctx).Order("sort_order ASC, name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&categories).Error; err != nil {
		return nil, err
	}

	type count struct {
		CategoryID uint
		N          int64
	}
	var counts []count
	if err := r.db.WithContext(ctx).Model(&Product{}).
		Select("category_id, COUNT(*) AS n").
		Group("category_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.CategoryID] = c.N
	}
	for i := range categories {
		categories[i].ProductsCount = byID[categories[i].ID]
	}
	return categories, nil
}

func (r *CategoriesRepository) GetCategory(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return &category, nil
}

// CategoryAndDescendantIDs resolves a slug to its category id plus the ids of
// every category nested below it.
func (r *CategoriesRepository) CategoryAndDescendantIDs(ctx context.Context, slug string) ([]uint, error) {
	var root Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&root).Error; err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	ids := []uint{root.ID}
	frontier := []uint{root.ID}
	for len(frontier) > 0 {
		var children []uint
		if err := r.db.WithContext(ctx).Model(&Category{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}

func (r *CategoriesRepository) CreateCategory(ctx context.Context, category *Category) error {
	if err := r.checkCategory(ctx, category); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit("Parent", "Children").Create(category).Error
}

func (r *CategoriesRepository) UpdateCategory(ctx context.Context, category *Category) error {
	if err := r.checkCategory(ctx, category); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit("Parent", "Children").Save(category).Error
}

// DeleteCategory refuses to delete categories that still hold products or children.
func (r *CategoriesRepository) DeleteCategory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category Category
		if err := tx.First(&category, id).Error; err != nil {
			return notFound(err, ErrCategoryNotFound)
		}
		var products int64
		if err := tx.Unscoped().Model(&Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return err
		}
		if products > 0 {
			return Rule("category", "cannot delete %s: it has %d products", category.Name, products)
		}
		var children int64
		if err := tx.Model(&Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return Rule("category", "cannot delete %s: it has %d subcategories", category.Name, children)
		}
		return tx.Delete(&category).Error
	})
}

func (r *CategoriesRepository) checkCategory(ctx context.Context, category *Category) error {
	var clash int64
	if err := r.db.WithContext(ctx).Model(&Category{}).
		Where("slug = ? AND id <> ?", category.Slug, category.ID).
		Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		return Rule("slug", "slug %q is already taken", category.Slug)
	}

	if category.ParentID == nil {
		return nil
	}
	// Walk up from the new parent; reaching the category itself means a cycle.
	next := *category.ParentID
	for hops := 0; hops < 64; hops++ {
		if category.ID != 0 && next == category.ID {
			return Rule("parent_id", "a category cannot be nested under itself")
		}
		var parent Category
		if err := r.db.WithContext(ctx).First(&parent, next).Error; err != nil {
			if hops == 0 && errors.Is(err, gorm.ErrRecordNotFound) {
				return Rule("parent_id", "parent category %d does not exist", next)
			}
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		next = *parent.ParentID
	}
	return Rule("parent_id", "category tree is too deep")
}
