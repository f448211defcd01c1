package products

import (
	"context"
	"net/http"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type Response struct {
	Total    int              `json:"total"`
	Products []models.Product `json:"products"`
}

type ProductProvider interface {
	GetFilteredProducts(ctx context.Context, offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
	AdjustStock(ctx context.Context, id uint, delta int) (*models.Product, error)
	SetStock(ctx context.Context, id uint, quantity int) (*models.Product, error)
	SyncServices(ctx context.Context, productID uint, serviceIDs []uint) (*models.Product, error)
}

// ProductHandler serves the back-office product screens.
type ProductHandler struct {
	repo              ProductProvider
	lowStockThreshold int
}

func NewProductHandler(r ProductProvider, lowStockThreshold int) *ProductHandler {
	return &ProductHandler{repo: r, lowStockThreshold: lowStockThreshold}
}

type productRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Slug          string           `json:"slug" validate:"omitempty,max=220"`
	SKU           string           `json:"sku" validate:"required,max=64"`
	Barcode       string           `json:"barcode" validate:"max=64"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price" validate:"gt=0"`
	SalePrice     *decimal.Decimal `json:"sale_price" validate:"omitempty,gte=0"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	Status        string           `json:"status" validate:"omitempty,oneof=active inactive draft"`
	IsFeatured    bool             `json:"is_featured"`
	CategoryID    uint             `json:"category_id" validate:"required"`
	BrandID       *uint            `json:"brand_id" validate:"omitempty,gt=0"`
}

func (in *productRequest) apply(p *models.Product) error {
	source := in.Slug
	if source == "" {
		source = in.Name
	}
	p.Slug = slug.Make(source)
	if p.Slug == "" {
		return models.Rule("slug", "cannot be derived from %q", source)
	}

	p.SalePrice = nil
	if in.SalePrice != nil && in.SalePrice.IsPositive() {
		if !in.SalePrice.LessThan(in.Price) {
			return models.Rule("sale_price", "must be lower than the price")
		}
		sale := in.SalePrice.Round(2)
		p.SalePrice = &sale
	}

	p.Name = in.Name
	p.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	p.Barcode = strings.TrimSpace(in.Barcode)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.IsFeatured = in.IsFeatured
	p.CategoryID = in.CategoryID
	p.BrandID = in.BrandID
	if in.Status != "" {
		p.Status = in.Status
	}
	return nil
}

func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, limit := httpx.Pagination(r)
	q := r.URL.Query()

	filters := models.ProductFilters{
		Search:            strings.TrimSpace(q.Get("q")),
		BrandID:           httpx.QueryUint(r, "brand_id"),
		LowStockThreshold: h.lowStockThreshold,
		Sort:              q.Get("sort"),
	}
	if id := httpx.QueryUint(r, "category_id"); id != nil {
		filters.CategoryIDs = []uint{*id}
	}
	if s := q.Get("status"); models.ValidProductStatus(s) {
		filters.Status = s
	}
	if s := q.Get("stock"); s == "low" || s == "out" {
		filters.Stock = s
	}

	res, total, err := h.repo.GetFilteredProducts(r.Context(), offset, limit, filters)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to get products")
		return
	}
	if res == nil {
		res = []models.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Total: int(total), Products: res})
}

func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to retrieve product")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input productRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	product := &models.Product{
		Status:        models.ProductStatusActive,
		StockQuantity: input.StockQuantity,
	}
	if err := input.apply(product); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create product")
		return
	}
	if err := h.repo.CreateProduct(r.Context(), product); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create product")
		return
	}

	httpx.Log(r.Context()).WithField("product_id", product.ID).Info("product created")
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": product,
	})
}

// HandleUpdate edits catalog data. Stock is changed through HandleStock only.
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input productRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update product")
		return
	}
	if err := input.apply(product); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update product")
		return
	}
	if err := h.repo.UpdateProduct(r.Context(), product); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update product")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteProduct(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete product")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Product deleted successfully",
	})
}

type stockRequest struct {
	Adjustment *int `json:"adjustment" validate:"required_without=Quantity"`
	Quantity   *int `json:"quantity" validate:"omitempty,gte=0"`
}

// HandleStock applies either a signed adjustment or an absolute quantity.
func (h *ProductHandler) HandleStock(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input stockRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	if input.Adjustment != nil && input.Quantity != nil {
		httpx.WriteFields(w, "Validation failed", map[string]string{"adjustment": "send either adjustment or quantity"})
		return
	}

	var (
		product *models.Product
		err     error
	)
	if input.Quantity != nil {
		product, err = h.repo.SetStock(r.Context(), id, *input.Quantity)
	} else {
		product, err = h.repo.AdjustStock(r.Context(), id, *input.Adjustment)
	}
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update stock")
		return
	}

	httpx.Log(r.Context()).WithFields(logrus.Fields{
		"product_id": product.ID,
		"stock":      product.StockQuantity,
	}).Info("stock updated")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":        "Stock updated successfully",
		"stock_quantity": product.StockQuantity,
	})
}

type servicesRequest struct {
	ServiceIDs []uint `json:"service_ids" validate:"dive,gt=0"`
}

func (h *ProductHandler) HandleServices(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input servicesRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	product, err := h.repo.SyncServices(r.Context(), id, input.ServiceIDs)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update product services")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Product services updated successfully",
		"services": product.Services,
	})
}
