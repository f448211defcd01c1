package cart

import (
	"context"
	"net/http"
	"time"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/app/session"
	"github.com/mytheresa/storefront/models"
)

type CartStore interface {
	GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	AddItem(ctx context.Context, owner models.CartOwner, productID uint, quantity int, selections []models.ServiceSelection, now time.Time) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, owner models.CartOwner, itemID uint, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner models.CartOwner, itemID uint) (*models.Cart, error)
	Clear(ctx context.Context, owner models.CartOwner) error
	SetCoupon(ctx context.Context, owner models.CartOwner, code string) error
}

type CartHandler struct {
	carts   CartStore
	coupons CouponFinder
	rules   models.PricingRules
	now     func() time.Time
}

func NewCartHandler(carts CartStore, coupons CouponFinder, rules models.PricingRules) *CartHandler {
	return &CartHandler{carts: carts, coupons: coupons, rules: rules, now: time.Now}
}

// Owner identifies the caller's cart. Guests are keyed by the session
// cookie, which is only issued when create is set.
func Owner(w http.ResponseWriter, r *http.Request, create bool) models.CartOwner {
	if user := auth.UserFrom(r.Context()); user != nil {
		id := user.ID
		return models.CartOwner{UserID: &id}
	}
	if create {
		return models.CartOwner{SessionID: session.Ensure(w, r)}
	}
	return models.CartOwner{SessionID: session.ID(r)}
}

func (h *CartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), Owner(w, r, false))
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to load cart")
		return
	}
	h.writeCart(w, r, http.StatusOK, "", c)
}

type serviceSelection struct {
	ServiceID   uint       `json:"service_id" validate:"required"`
	ProviderID  *uint      `json:"provider_id" validate:"omitempty,gt=0"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type addItemRequest struct {
	ProductID uint               `json:"product_id" validate:"required"`
	Quantity  int                `json:"quantity" validate:"omitempty,gte=1,lte=1000"`
	Services  []serviceSelection `json:"services" validate:"omitempty,dive"`
}

func (h *CartHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var input addItemRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	selections := make([]models.ServiceSelection, 0, len(input.Services))
	for _, s := range input.Services {
		selections = append(selections, models.ServiceSelection{
			ServiceID:   s.ServiceID,
			ProviderID:  s.ProviderID,
			ScheduledAt: s.ScheduledAt,
		})
	}

	c, err := h.carts.AddItem(r.Context(), Owner(w, r, true), input.ProductID, input.Quantity, selections, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to add item to cart")
		return
	}
	h.writeCart(w, r, http.StatusCreated, "Item added to cart", c)
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=1000"`
}

func (h *CartHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input updateItemRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), Owner(w, r, false), id, input.Quantity)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update cart item")
		return
	}
	h.writeCart(w, r, http.StatusOK, "Cart updated", c)
}

func (h *CartHandler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), Owner(w, r, false), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to remove cart item")
		return
	}
	h.writeCart(w, r, http.StatusOK, "Item removed from cart", c)
}

func (h *CartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), Owner(w, r, false)); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to clear cart")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// HandleApplyCoupon checks the code against the current subtotal before
// storing it on the cart.
func (h *CartHandler) HandleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var input couponRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	owner := Owner(w, r, true)
	c, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to apply coupon")
		return
	}
	if c.IsEmpty() {
		httpx.WriteDomainError(w, r, models.Rule("coupon_code", "cart is empty"), "")
		return
	}
	if _, err := resolveCoupon(r.Context(), h.coupons, input.Code, c.Subtotal(), h.now()); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to apply coupon")
		return
	}
	if err := h.carts.SetCoupon(r.Context(), owner, input.Code); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to apply coupon")
		return
	}
	c.CouponCode = models.NormalizeCouponCode(input.Code)
	h.writeCart(w, r, http.StatusOK, "Coupon applied", c)
}

func (h *CartHandler) HandleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	owner := Owner(w, r, false)
	c, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to remove coupon")
		return
	}
	if c.ID != 0 && c.CouponCode != "" {
		if err := h.carts.SetCoupon(r.Context(), owner, ""); err != nil {
			httpx.WriteDomainError(w, r, err, "Failed to remove coupon")
			return
		}
	}
	c.CouponCode = ""
	h.writeCart(w, r, http.StatusOK, "Coupon removed", c)
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, status int, msg string, c *models.Cart) {
	summary, _, err := Summarize(r.Context(), c, h.coupons, h.rules, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to price cart")
		return
	}
	if msg == "" {
		httpx.WriteJSON(w, status, summary)
		return
	}
	httpx.WriteJSON(w, status, map[string]any{
		"message": msg,
		"cart":    summary,
	})
}
