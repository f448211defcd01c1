package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	PaymentMethodCOD          = "cod"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

const (
	ChannelOnline = "online"
	ChannelPOS    = "pos"
)

// Address is embedded into orders as an immutable snapshot.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is an immutable snapshot of a purchase. Only statuses change after
// it is placed.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID          *uint           `gorm:"index" json:"user_id"`
	Channel         string          `gorm:"type:varchar(10);not null;default:'online'" json:"channel"`
	Status          string          `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   string          `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentMethod   string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `gorm:"index" json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	ShippingAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_amount"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount_amount"`
	Total           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	CouponID        *uint           `json:"coupon_id"`
	CouponCode      string          `json:"coupon_code"`
	BillingAddress  Address         `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	ShippingAddress Address         `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Notes           string          `json:"notes"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Payment         *Payment        `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (o *Order) TableName() string {
	return "orders"
}

// OrderItem snapshots product name, sku and price at purchase time. Subtotal
// is the whole line: (price + every booked service's price) * quantity, so
// item subtotals add up to the order subtotal.
type OrderItem struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	OrderID     uint             `gorm:"not null;index" json:"order_id"`
	ProductID   uint             `gorm:"not null;index" json:"product_id"`
	ProductName string           `gorm:"not null" json:"product_name"`
	ProductSKU  string           `gorm:"column:product_sku;not null" json:"product_sku"`
	Price       decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity    int              `gorm:"not null" json:"quantity"`
	Subtotal    decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Bookings    []ServiceBooking `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"services"`
}

func (i *OrderItem) TableName() string {
	return "order_items"
}

// Payment records how an order was (or will be) paid.
type Payment struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	OrderID        uint             `gorm:"not null;uniqueIndex" json:"order_id"`
	Method         string           `gorm:"type:varchar(20);not null" json:"method"`
	Amount         decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount"`
	AmountTendered *decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount_tendered,omitempty"`
	ChangeDue      *decimal.Decimal `gorm:"type:decimal(10,2)" json:"change_due,omitempty"`
	Status         string           `gorm:"type:varchar(20);not null" json:"status"`
	TransactionID  string           `gorm:"uniqueIndex;not null" json:"transaction_id"`
	PaidAt         *time.Time       `json:"paid_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (p *Payment) TableName() string {
	return "payments"
}

// NewOrderNumber builds a human readable, unique order reference.
func NewOrderNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + "-" + now.Format("20060102") + "-" + suffix
}

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransitionOrder reports whether an order may move between statuses.
// Orders advance one step at a time; any status but completed and cancelled
// may be cancelled.
func CanTransitionOrder(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CustomerCancellable reports whether the customer may still cancel.
func (o *Order) CustomerCancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

func ValidOrderStatus(s string) bool {
	_, known := orderTransitions[s]
	return known || s == OrderStatusCompleted || s == OrderStatusCancelled
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}
