package categories

import (
	"context"
	"net/http"

	"github.com/gosimple/slug"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type CategoryProvider interface {
	GetAllCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uint) error
}

type CategoryHandler struct {
	repo CategoryProvider
}

func NewCategoryHandler(r CategoryProvider) *CategoryHandler {
	return &CategoryHandler{repo: r}
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"max=2000"`
	ParentID    *uint  `json:"parent_id" validate:"omitempty,gt=0"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
}

// apply copies the request onto category. Slugs default to the slugified name.
func (in *categoryRequest) apply(category *models.Category) error {
	source := in.Slug
	if source == "" {
		source = in.Name
	}
	category.Slug = slug.Make(source)
	if category.Slug == "" {
		return models.Rule("slug", "cannot be derived from %q", source)
	}
	category.Name = in.Name
	category.Description = in.Description
	category.ParentID = in.ParentID
	category.SortOrder = in.SortOrder
	if in.IsActive != nil {
		category.IsActive = *in.IsActive
	}
	return nil
}

// HandleGetAll lists every category, active or not, with product counts.
func (h *CategoryHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.GetAllCategories(r.Context(), false)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch categories")
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	httpx.WriteJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	category, err := h.repo.GetCategory(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch category")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input categoryRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	category := &models.Category{IsActive: true}
	if err := input.apply(category); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create category")
		return
	}

	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create category")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":  "Category created successfully",
		"category": category,
	})
}

func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input categoryRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	category, err := h.repo.GetCategory(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update category")
		return
	}
	if err := input.apply(category); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update category")
		return
	}
	if err := h.repo.UpdateCategory(r.Context(), category); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update category")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Category updated successfully",
		"category": category,
	})
}

func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteCategory(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete category")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Category deleted successfully",
	})
}
