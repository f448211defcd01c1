package brands

import (
	"context"
	"net/http"
	"strings"

	"github.com/gosimple/slug"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type Response struct {
	Total  int            `json:"total"`
	Brands []models.Brand `json:"brands"`
}

type BrandProvider interface {
	ListBrands(ctx context.Context, offset, limit int, search string, activeOnly bool) ([]models.Brand, int64, error)
	GetBrand(ctx context.Context, id uint) (*models.Brand, error)
	SaveBrand(ctx context.Context, brand *models.Brand) error
	DeleteBrand(ctx context.Context, id uint) error
}

type BrandHandler struct {
	repo BrandProvider
}

func NewBrandHandler(r BrandProvider) *BrandHandler {
	return &BrandHandler{repo: r}
}

type brandRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"max=2000"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url,max=500"`
	IsActive    *bool  `json:"is_active"`
}

func (in *brandRequest) apply(brand *models.Brand) error {
	source := in.Slug
	if source == "" {
		source = in.Name
	}
	brand.Slug = slug.Make(source)
	if brand.Slug == "" {
		return models.Rule("slug", "cannot be derived from %q", source)
	}
	brand.Name = in.Name
	brand.Description = in.Description
	brand.LogoURL = in.LogoURL
	if in.IsActive != nil {
		brand.IsActive = *in.IsActive
	}
	return nil
}

func (h *BrandHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, limit := httpx.Pagination(r)
	search := strings.TrimSpace(r.URL.Query().Get("q"))

	brands, total, err := h.repo.ListBrands(r.Context(), offset, limit, search, false)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch brands")
		return
	}
	if brands == nil {
		brands = []models.Brand{}
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Total: int(total), Brands: brands})
}

func (h *BrandHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	brand, err := h.repo.GetBrand(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch brand")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, brand)
}

func (h *BrandHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input brandRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	brand := &models.Brand{IsActive: true}
	if err := input.apply(brand); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create brand")
		return
	}
	if err := h.repo.SaveBrand(r.Context(), brand); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create brand")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Brand created successfully",
		"brand":   brand,
	})
}

func (h *BrandHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input brandRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	brand, err := h.repo.GetBrand(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update brand")
		return
	}
	if err := input.apply(brand); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update brand")
		return
	}
	if err := h.repo.SaveBrand(r.Context(), brand); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update brand")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Brand updated successfully",
		"brand":   brand,
	})
}

func (h *BrandHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteBrand(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete brand")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Brand deleted successfully",
	})
}
