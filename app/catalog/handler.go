package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type Response struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Brand struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Product struct {
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	SKU            string   `json:"sku"`
	Price          float64  `json:"price"`
	SalePrice      *float64 `json:"sale_price"`
	EffectivePrice float64  `json:"effective_price"`
	OnSale         bool     `json:"on_sale"`
	InStock        bool     `json:"in_stock"`
	IsFeatured     bool     `json:"is_featured"`
	Category       Category `json:"category"`
	Brand          *Brand   `json:"brand,omitempty"`
}

type Service struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	DurationMinutes  int     `json:"duration_minutes"`
	RequiresProvider bool    `json:"requires_provider"`
}

type ProductDetail struct {
	Product
	Description   string    `json:"description"`
	StockQuantity int       `json:"stock_quantity"`
	Services      []Service `json:"services"`
}

type ProductProvider interface {
	GetFilteredProducts(ctx context.Context, offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
}

type CategoryProvider interface {
	GetAllCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	CategoryAndDescendantIDs(ctx context.Context, slug string) ([]uint, error)
}

type BrandProvider interface {
	ListBrands(ctx context.Context, offset, limit int, search string, activeOnly bool) ([]models.Brand, int64, error)
}

type CatalogHandler struct {
	repo       ProductProvider
	categories CategoryProvider
	brands     BrandProvider
}

func NewCatalogHandler(r ProductProvider, categories CategoryProvider, brands BrandProvider) *CatalogHandler {
	return &CatalogHandler{
		repo:       r,
		categories: categories,
		brands:     brands,
	}
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	offset, limit := httpx.Pagination(r)
	q := r.URL.Query()

	filters := models.ProductFilters{
		Search:       strings.TrimSpace(q.Get("q")),
		BrandSlug:    q.Get("brand"),
		Status:       models.ProductStatusActive,
		MinPrice:     parsePrice(q.Get("min_price")),
		MaxPrice:     parsePrice(q.Get("max_price")),
		InStock:      httpx.QueryBool(r, "in_stock"),
		FeaturedOnly: httpx.QueryBool(r, "featured"),
		Sort:         parseSort(q.Get("sort")),
	}

	if slug := q.Get("category"); slug != "" {
		ids, err := h.categories.CategoryAndDescendantIDs(r.Context(), slug)
		if errors.Is(err, models.ErrNotFound) {
			httpx.WriteJSON(w, http.StatusOK, Response{Total: 0, Products: []Product{}})
			return
		}
		if err != nil {
			httpx.WriteDomainError(w, r, err, "failed to get products")
			return
		}
		filters.CategoryIDs = ids
	}

	res, total, err := h.repo.GetFilteredProducts(r.Context(), offset, limit, filters)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to get products")
		return
	}

	products := make([]Product, len(res))
	for i := range res {
		products[i] = toProduct(&res[i])
	}

	httpx.WriteJSON(w, http.StatusOK, Response{
		Total:    int(total),
		Products: products,
	})
}

func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	product, err := h.repo.GetBySlug(r.Context(), slug)
	if errors.Is(err, models.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to retrieve product")
		return
	}

	services := make([]Service, len(product.Services))
	for i, s := range product.Services {
		services[i] = Service{
			ID:               s.ID,
			Name:             s.Name,
			Description:      s.Description,
			Price:            s.Price.InexactFloat64(),
			DurationMinutes:  s.DurationMinutes,
			RequiresProvider: s.RequiresProvider,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, ProductDetail{
		Product:       toProduct(product),
		Description:   product.Description,
		StockQuantity: product.StockQuantity,
		Services:      services,
	})
}

// HandleCategoryTree returns the active categories nested under their roots.
func (h *CatalogHandler) HandleCategoryTree(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.GetAllCategories(r.Context(), true)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch categories")
		return
	}
	tree := models.BuildCategoryTree(categories)
	if tree == nil {
		tree = []models.Category{}
	}
	httpx.WriteJSON(w, http.StatusOK, tree)
}

func (h *CatalogHandler) HandleBrands(w http.ResponseWriter, r *http.Request) {
	brands, _, err := h.brands.ListBrands(r.Context(), 0, httpx.MaxLimit, "", true)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch brands")
		return
	}
	response := make([]Brand, len(brands))
	for i, b := range brands {
		response[i] = Brand{Slug: b.Slug, Name: b.Name}
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

func toProduct(p *models.Product) Product {
	out := Product{
		Slug:           p.Slug,
		Name:           p.Name,
		SKU:            p.SKU,
		Price:          p.Price.InexactFloat64(),
		EffectivePrice: p.EffectivePrice().InexactFloat64(),
		OnSale:         p.OnSale(),
		InStock:        p.StockQuantity > 0,
		IsFeatured:     p.IsFeatured,
		Category: Category{
			Slug: p.Category.Slug,
			Name: p.Category.Name,
		},
	}
	if p.OnSale() {
		sale := p.SalePrice.InexactFloat64()
		out.SalePrice = &sale
	}
	if p.Brand != nil {
		out.Brand = &Brand{Slug: p.Brand.Slug, Name: p.Brand.Name}
	}
	return out
}

func parsePrice(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}

func parseSort(s string) string {
	switch s {
	case models.SortPriceAsc, models.SortPriceDesc, models.SortName:
		return s
	}
	return models.SortNewest
}
