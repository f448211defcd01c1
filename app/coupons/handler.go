package coupons

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type Response struct {
	Total   int             `json:"total"`
	Coupons []models.Coupon `json:"coupons"`
}

type CouponProvider interface {
	ListCoupons(ctx context.Context, offset, limit int, filters models.CouponFilters) ([]models.Coupon, int64, error)
	GetCoupon(ctx context.Context, id uint) (*models.Coupon, error)
	SaveCoupon(ctx context.Context, coupon *models.Coupon) error
	DeleteCoupon(ctx context.Context, id uint) error
}

type CouponHandler struct {
	repo CouponProvider
}

func NewCouponHandler(r CouponProvider) *CouponHandler {
	return &CouponHandler{repo: r}
}

type couponRequest struct {
	Code              string           `json:"code" validate:"required,min=3,max=64"`
	Description       string           `json:"description" validate:"max=500"`
	Type              string           `json:"type" validate:"required,oneof=percentage fixed"`
	Value             decimal.Decimal  `json:"value" validate:"gt=0"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount" validate:"gte=0"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount" validate:"omitempty,gt=0"`
	UsageLimit        *int             `json:"usage_limit" validate:"omitempty,gte=1"`
	StartsAt          *time.Time       `json:"starts_at"`
	ExpiresAt         *time.Time       `json:"expires_at"`
	IsActive          *bool            `json:"is_active"`
}

func (in *couponRequest) apply(c *models.Coupon) error {
	c.Code = models.NormalizeCouponCode(in.Code)
	c.Description = in.Description
	c.Type = in.Type
	c.Value = in.Value.Round(2)
	c.MinOrderAmount = in.MinOrderAmount.Round(2)
	c.MaxDiscountAmount = in.MaxDiscountAmount
	c.UsageLimit = in.UsageLimit
	c.StartsAt = in.StartsAt
	c.ExpiresAt = in.ExpiresAt
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return c.CheckDefinition()
}

func (h *CouponHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, limit := httpx.Pagination(r)
	filters := models.CouponFilters{Search: strings.TrimSpace(r.URL.Query().Get("q"))}
	if r.URL.Query().Has("active") {
		active := httpx.QueryBool(r, "active")
		filters.Active = &active
	}

	coupons, total, err := h.repo.ListCoupons(r.Context(), offset, limit, filters)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch coupons")
		return
	}
	if coupons == nil {
		coupons = []models.Coupon{}
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Total: int(total), Coupons: coupons})
}

func (h *CouponHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	coupon, err := h.repo.GetCoupon(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch coupon")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, coupon)
}

func (h *CouponHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input couponRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	coupon := &models.Coupon{IsActive: true}
	if err := input.apply(coupon); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create coupon")
		return
	}
	if err := h.repo.SaveCoupon(r.Context(), coupon); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create coupon")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Coupon created successfully",
		"coupon":  coupon,
	})
}

// HandleUpdate replaces the coupon definition. Usage count is kept.
func (h *CouponHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input couponRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	coupon, err := h.repo.GetCoupon(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update coupon")
		return
	}
	if err := input.apply(coupon); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update coupon")
		return
	}
	if err := h.repo.SaveCoupon(r.Context(), coupon); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update coupon")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Coupon updated successfully",
		"coupon":  coupon,
	})
}

func (h *CouponHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	coupon, err := h.repo.GetCoupon(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to toggle coupon")
		return
	}
	coupon.IsActive = !coupon.IsActive
	if err := h.repo.SaveCoupon(r.Context(), coupon); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to toggle coupon")
		return
	}

	state := "deactivated"
	if coupon.IsActive {
		state = "activated"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Coupon " + state + " successfully",
		"coupon":  coupon,
	})
}

func (h *CouponHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteCoupon(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete coupon")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Coupon deleted successfully",
	})
}
