package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/cart"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

// PaymentMethods are the methods offered to online customers.
var PaymentMethods = []string{models.PaymentMethodCOD, models.PaymentMethodCard, models.PaymentMethodBankTransfer}

type CartReader interface {
	GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
}

type AddressBook interface {
	ListAddresses(ctx context.Context, userID uint) ([]models.UserAddress, error)
	GetAddress(ctx context.Context, userID, id uint) (*models.UserAddress, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in models.PlaceOrderInput) (*models.Order, error)
}

// Recorder receives checkout outcomes, see metrics.Metrics.
type Recorder interface {
	OrderPlaced(channel, paymentMethod string, total float64)
	CheckoutFailed(channel, reason string)
}

type CheckoutHandler struct {
	carts     CartReader
	coupons   cart.CouponFinder
	addresses AddressBook
	orders    OrderPlacer
	metrics   Recorder
	rules     models.PricingRules
	now       func() time.Time
}

func NewCheckoutHandler(carts CartReader, coupons cart.CouponFinder, addresses AddressBook, orders OrderPlacer, m Recorder, rules models.PricingRules) *CheckoutHandler {
	return &CheckoutHandler{
		carts:     carts,
		coupons:   coupons,
		addresses: addresses,
		orders:    orders,
		metrics:   m,
		rules:     rules,
		now:       time.Now,
	}
}

type SummaryResponse struct {
	Cart           *cart.Summary        `json:"cart"`
	Addresses      []models.UserAddress `json:"addresses"`
	PaymentMethods []string             `json:"payment_methods"`
}

// HandleSummary shows what POST /checkout would charge.
func (h *CheckoutHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	c, err := h.carts.GetCart(r.Context(), models.CartOwner{UserID: &user.ID})
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to load checkout")
		return
	}
	summary, _, err := cart.Summarize(r.Context(), c, h.coupons, h.rules, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to load checkout")
		return
	}
	addresses, err := h.addresses.ListAddresses(r.Context(), user.ID)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to load checkout")
		return
	}
	if addresses == nil {
		addresses = []models.UserAddress{}
	}
	httpx.WriteJSON(w, http.StatusOK, SummaryResponse{
		Cart:           summary,
		Addresses:      addresses,
		PaymentMethods: PaymentMethods,
	})
}

type addressInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=30"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

func (a *addressInput) address() models.Address {
	return models.Address{
		Name:       strings.TrimSpace(a.Name),
		Phone:      strings.TrimSpace(a.Phone),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

type checkoutRequest struct {
	Billing           *addressInput `json:"billing"`
	BillingAddressID  *uint         `json:"billing_address_id"`
	Shipping          *addressInput `json:"shipping"`
	ShippingAddressID *uint         `json:"shipping_address_id"`
	SameAsBilling     bool          `json:"same_as_billing"`
	PaymentMethod     string        `json:"payment_method" validate:"required,oneof=cod card bank_transfer"`
	Notes             string        `json:"notes" validate:"max=1000"`
}

// resolveAddresses picks inline or saved addresses. Saved ones must belong to userID.
func (h *CheckoutHandler) resolveAddresses(ctx context.Context, userID uint, in *checkoutRequest) (billing, shipping models.Address, err error) {
	switch {
	case in.BillingAddressID != nil:
		saved, err := h.addresses.GetAddress(ctx, userID, *in.BillingAddressID)
		if err != nil {
			return billing, shipping, err
		}
		billing = saved.Snapshot()
	case in.Billing != nil:
		billing = in.Billing.address()
	default:
		return billing, shipping, models.Rule("billing", "is required")
	}

	switch {
	case in.SameAsBilling:
		shipping = billing
	case in.ShippingAddressID != nil:
		saved, err := h.addresses.GetAddress(ctx, userID, *in.ShippingAddressID)
		if err != nil {
			return billing, shipping, err
		}
		shipping = saved.Snapshot()
	case in.Shipping != nil:
		shipping = in.Shipping.address()
	default:
		return billing, shipping, models.Rule("shipping", "is required unless same_as_billing is set")
	}
	return billing, shipping, nil
}

// HandlePlaceOrder turns the caller's cart into an order. Stock, coupon and
// provider checks happen inside the order transaction.
func (h *CheckoutHandler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var input checkoutRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	user := auth.UserFrom(r.Context())

	billing, shipping, err := h.resolveAddresses(r.Context(), user.ID, &input)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to place order")
		return
	}

	c, err := h.carts.GetCart(r.Context(), models.CartOwner{UserID: &user.ID})
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to place order")
		return
	}
	if c.IsEmpty() {
		h.metrics.CheckoutFailed(models.ChannelOnline, "empty_cart")
		httpx.WriteDomainError(w, r, models.Rule("cart", "cart is empty"), "")
		return
	}

	paymentStatus := models.PaymentStatusPending
	if input.PaymentMethod == models.PaymentMethodCard {
		paymentStatus = models.PaymentStatusPaid
	}
	phone := billing.Phone
	if phone == "" {
		phone = user.Phone
	}

	order, err := h.orders.PlaceOrder(r.Context(), models.PlaceOrderInput{
		UserID:          &user.ID,
		CartID:          c.ID,
		Channel:         models.ChannelOnline,
		OrderPrefix:     "ORD",
		Lines:           Lines(c),
		CouponCode:      c.CouponCode,
		PaymentMethod:   input.PaymentMethod,
		Status:          models.OrderStatusPending,
		PaymentStatus:   paymentStatus,
		CustomerName:    user.Name,
		CustomerEmail:   user.Email,
		CustomerPhone:   phone,
		BillingAddress:  billing,
		ShippingAddress: shipping,
		Notes:           strings.TrimSpace(input.Notes),
		Shippable:       true,
		Rules:           h.rules,
		Now:             h.now(),
	})
	if err != nil {
		h.metrics.CheckoutFailed(models.ChannelOnline, FailureReason(err))
		httpx.WriteDomainError(w, r, err, "Failed to place order")
		return
	}

	total, _ := order.Total.Float64()
	h.metrics.OrderPlaced(order.Channel, order.PaymentMethod, total)
	httpx.Log(r.Context()).WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
		"items":        len(order.Items),
	}).Info("order placed")

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":      "Order placed successfully",
		"order_number": order.OrderNumber,
		"order":        order,
	})
}

// Lines converts cart items into order lines, keeping selected services.
func Lines(c *models.Cart) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(c.Items))
	for _, it := range c.Items {
		line := models.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity}
		for _, s := range it.Services {
			line.Services = append(line.Services, models.LineService{
				ServiceID:   s.ProductServiceID,
				ProviderID:  s.ServiceProviderID,
				ScheduledAt: s.ScheduledAt,
			})
		}
		lines = append(lines, line)
	}
	return lines
}

// FailureReason is a low cardinality label for a failed order.
func FailureReason(err error) string {
	var rule *models.RuleError
	switch {
	case errors.As(err, &rule):
		switch rule.Field {
		case "items", "quantity":
			return "stock"
		case "coupon_code":
			return "coupon"
		case "services", "scheduled_at", "provider_id":
			return "scheduling"
		case "amount_tendered":
			return "payment"
		}
		return "validation"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "error"
}
