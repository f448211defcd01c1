// Package pos serves the in-store point of sale used by staff.
package pos

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/checkout"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

const searchLimit = 20

type ProductSearcher interface {
	SearchForPOS(ctx context.Context, q string, limit int) ([]models.Product, error)
}

type OrderStore interface {
	PlaceOrder(ctx context.Context, in models.PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
}

type CustomerLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

type POSHandler struct {
	products  ProductSearcher
	orders    OrderStore
	customers CustomerLoader
	metrics   checkout.Recorder
	rules     models.PricingRules
	now       func() time.Time
}

func NewPOSHandler(products ProductSearcher, orders OrderStore, customers CustomerLoader, m checkout.Recorder, rules models.PricingRules) *POSHandler {
	return &POSHandler{
		products:  products,
		orders:    orders,
		customers: customers,
		metrics:   m,
		rules:     rules,
		now:       time.Now,
	}
}

type SearchResult struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	Barcode        string          `json:"barcode,omitempty"`
	Price          decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	StockQuantity  int             `json:"stock_quantity"`
}

// HandleSearch finds sellable products by name, sku or barcode.
func (h *POSHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	products, err := h.products.SearchForPOS(r.Context(), q, searchLimit)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to search products")
		return
	}
	results := make([]SearchResult, 0, len(products))
	for i := range products {
		p := &products[i]
		results = append(results, SearchResult{
			ID:             p.ID,
			Name:           p.Name,
			SKU:            p.SKU,
			Barcode:        p.Barcode,
			Price:          p.Price,
			EffectivePrice: p.EffectivePrice(),
			StockQuantity:  p.StockQuantity,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": results})
}

type lineRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gte=1,lte=1000"`
}

type orderRequest struct {
	Items          []lineRequest    `json:"items" validate:"required,min=1,dive"`
	CustomerID     *uint            `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName   string           `json:"customer_name" validate:"max=100"`
	CustomerEmail  string           `json:"customer_email" validate:"omitempty,email"`
	CouponCode     string           `json:"coupon_code" validate:"max=64"`
	PaymentMethod  string           `json:"payment_method" validate:"required,oneof=cash card"`
	AmountTendered *decimal.Decimal `json:"amount_tendered" validate:"required_if=PaymentMethod cash,omitempty,gte=0"`
	Notes          string           `json:"notes" validate:"max=1000"`
}

// HandleCreateOrder rings up a counter sale. It is completed and paid at once
// and never charged for shipping.
func (h *POSHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var input orderRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	in := models.PlaceOrderInput{
		Channel:       models.ChannelPOS,
		OrderPrefix:   "POS",
		CouponCode:    strings.TrimSpace(input.CouponCode),
		PaymentMethod: input.PaymentMethod,
		Status:        models.OrderStatusCompleted,
		PaymentStatus: models.PaymentStatusPaid,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerEmail: models.NormalizeEmail(input.CustomerEmail),
		Notes:         strings.TrimSpace(input.Notes),
		Shippable:     false,
		Rules:         h.rules,
		Now:           h.now(),
	}
	if input.PaymentMethod == models.PaymentMethodCash {
		in.AmountTendered = input.AmountTendered
	}
	for _, l := range input.Items {
		in.Lines = append(in.Lines, models.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	if input.CustomerID != nil {
		customer, err := h.customers.GetUser(r.Context(), *input.CustomerID)
		if err != nil {
			httpx.WriteDomainError(w, r, err, "Failed to create order")
			return
		}
		in.UserID = &customer.ID
		if in.CustomerName == "" {
			in.CustomerName = customer.Name
		}
		if in.CustomerEmail == "" {
			in.CustomerEmail = customer.Email
		}
		in.CustomerPhone = customer.Phone
	}
	if in.CustomerName == "" {
		in.CustomerName = "Walk-in customer"
	}

	order, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		h.metrics.CheckoutFailed(models.ChannelPOS, checkout.FailureReason(err))
		httpx.WriteDomainError(w, r, err, "Failed to create order")
		return
	}

	total, _ := order.Total.Float64()
	h.metrics.OrderPlaced(order.Channel, order.PaymentMethod, total)
	entry := httpx.Log(r.Context()).WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
	})
	if staff := auth.UserFrom(r.Context()); staff != nil {
		entry = entry.WithField("cashier_id", staff.ID)
	}
	entry.Info("pos sale completed")

	resp := map[string]any{
		"message":      "Order created successfully",
		"order_number": order.OrderNumber,
		"order":        order,
	}
	if order.Payment != nil && order.Payment.ChangeDue != nil {
		resp["change_due"] = order.Payment.ChangeDue
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

type ReceiptLine struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type Receipt struct {
	OrderNumber    string           `json:"order_number"`
	Date           time.Time        `json:"date"`
	CustomerName   string           `json:"customer_name"`
	Lines          []ReceiptLine    `json:"lines"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	Discount       decimal.Decimal  `json:"discount"`
	CouponCode     string           `json:"coupon_code,omitempty"`
	Tax            decimal.Decimal  `json:"tax"`
	Total          decimal.Decimal  `json:"total"`
	PaymentMethod  string           `json:"payment_method"`
	PaymentStatus  string           `json:"payment_status"`
	AmountTendered *decimal.Decimal `json:"amount_tendered,omitempty"`
	ChangeDue      *decimal.Decimal `json:"change_due,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
}

func NewReceipt(o *models.Order) Receipt {
	rc := Receipt{
		OrderNumber:   o.OrderNumber,
		Date:          o.CreatedAt,
		CustomerName:  o.CustomerName,
		Lines:         make([]ReceiptLine, 0, len(o.Items)),
		Subtotal:      o.Subtotal,
		Discount:      o.DiscountAmount,
		CouponCode:    o.CouponCode,
		Tax:           o.TaxAmount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
	}
	for _, it := range o.Items {
		rc.Lines = append(rc.Lines, ReceiptLine{
			Name:      it.ProductName,
			SKU:       it.ProductSKU,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Total:     it.Subtotal,
		})
	}
	if o.Payment != nil {
		rc.AmountTendered = o.Payment.AmountTendered
		rc.ChangeDue = o.Payment.ChangeDue
		rc.TransactionID = o.Payment.TransactionID
	}
	return rc
}

func (h *POSHandler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to load receipt")
		return
	}
	if order.Channel != models.ChannelPOS {
		httpx.WriteError(w, http.StatusNotFound, "receipt not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewReceipt(order))
}
