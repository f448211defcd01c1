package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrdersRepository books scheduled services and reads date filters in loc,
// the store's time zone.
type OrdersRepository struct {
	db  *gorm.DB
	loc *time.Location
}

type OrderFilters struct {
	UserID        *uint
	Status        string
	PaymentStatus string
	Channel       string
	Search        string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// LineService is an add-on requested for an order line.
type LineService struct {
	ServiceID   uint
	ProviderID  *uint
	ScheduledAt *time.Time
}

type OrderLine struct {
	ProductID uint
	Quantity  int
	Services  []LineService
}

// PlaceOrderInput is everything needed to turn a cart (or a POS basket) into
// an order. CartID, when non-zero, is emptied once the order is written.
type PlaceOrderInput struct {
	UserID          *uint
	CartID          uint
	Channel         string
	OrderPrefix     string
	Lines           []OrderLine
	CouponCode      string
	PaymentMethod   string
	Status          string
	PaymentStatus   string
	AmountTendered  *decimal.Decimal
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	BillingAddress  Address
	ShippingAddress Address
	Notes           string
	Shippable       bool
	Rules           PricingRules
	Now             time.Time
}

func NewOrdersRepository(db *gorm.DB, loc *time.Location) *OrdersRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &OrdersRepository{db: db, loc: loc}
}

// PlaceOrder writes an order, its items, bookings and payment in a single
// transaction. Products are locked and re-checked so stock never goes
// negative; any failed rule rolls back every write.
func (r *OrdersRepository) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, Rule("items", "cart is empty")
	}

	var order *Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := lockProducts(tx, in.Lines)
		if err != nil {
			return err
		}
		services, err := loadLineServices(tx, in.Lines)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		lineTotals := make([]decimal.Decimal, len(in.Lines))
		for i, line := range in.Lines {
			p := products[line.ProductID]
			prices := make([]decimal.Decimal, 0, len(line.Services))
			for _, ls := range line.Services {
				prices = append(prices, services[ls.ServiceID].Price)
			}
			lineTotals[i] = LineTotal(p.EffectivePrice(), prices, line.Quantity)
			subtotal = subtotal.Add(lineTotals[i])
		}

		var coupon *Coupon
		if in.CouponCode != "" {
			coupon, err = lockCoupon(tx, in.CouponCode)
			if err != nil {
				return err
			}
			if err := coupon.Validate(subtotal, in.Now); err != nil {
				return err
			}
			if err := redeemCoupon(tx, coupon.ID); err != nil {
				return err
			}
		}

		totals := in.Rules.Compute(subtotal, coupon, in.Shippable)

		payment := &Payment{
			Method:        in.PaymentMethod,
			Amount:        totals.Total,
			Status:        in.PaymentStatus,
			TransactionID: uuid.NewString(),
		}
		if in.PaymentStatus == PaymentStatusPaid {
			paidAt := in.Now
			payment.PaidAt = &paidAt
		}
		if in.PaymentMethod == PaymentMethodCash && in.AmountTendered != nil {
			if in.AmountTendered.LessThan(totals.Total) {
				return Rule("amount_tendered", "amount tendered %s is less than total %s",
					in.AmountTendered.StringFixed(2), totals.Total.StringFixed(2))
			}
			change := in.AmountTendered.Sub(totals.Total)
			payment.AmountTendered = in.AmountTendered
			payment.ChangeDue = &change
		}

		order = &Order{
			OrderNumber:     NewOrderNumber(in.OrderPrefix, in.Now.In(r.loc)),
			UserID:          in.UserID,
			Channel:         in.Channel,
			Status:          in.Status,
			PaymentStatus:   in.PaymentStatus,
			PaymentMethod:   in.PaymentMethod,
			CustomerName:    in.CustomerName,
			CustomerEmail:   in.CustomerEmail,
			CustomerPhone:   in.CustomerPhone,
			Subtotal:        totals.Subtotal,
			TaxAmount:       totals.Tax,
			ShippingAmount:  totals.Shipping,
			DiscountAmount:  totals.Discount,
			Total:           totals.Total,
			BillingAddress:  in.BillingAddress,
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			order.CouponCode = coupon.Code
		}
		if err := tx.Omit("Items", "Payment").Create(order).Error; err != nil {
			return err
		}

		for i, line := range in.Lines {
			p := products[line.ProductID]
			item := OrderItem{
				OrderID:     order.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				ProductSKU:  p.SKU,
				Price:       p.EffectivePrice(),
				Quantity:    line.Quantity,
				Subtotal:    lineTotals[i],
			}
			if err := tx.Omit("Bookings").Create(&item).Error; err != nil {
				return err
			}

			for _, ls := range line.Services {
				booking, err := bookService(tx, item.ID, services[ls.ServiceID], ls, line.Quantity, in.Now, r.loc)
				if err != nil {
					return err
				}
				item.Bookings = append(item.Bookings, *booking)
			}

			if err := decrementStock(tx, p.ID, line.Quantity); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}

		payment.OrderID = order.ID
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		order.Payment = payment

		if in.CartID != 0 {
			if err := emptyCart(tx, in.CartID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// lockProducts locks every product of the order in id order and checks that
// each is active with enough stock for the summed quantity.
func lockProducts(tx *gorm.DB, lines []OrderLine) (map[uint]Product, error) {
	wanted := make(map[uint]int, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, Rule("quantity", "quantity must be at least 1")
		}
		if _, seen := wanted[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		wanted[l.ProductID] += l.Quantity
	}

	var products []Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, Rule("items", "product %d no longer exists", id)
		}
		if !p.IsActive() {
			return nil, Rule("items", "%s is no longer available", p.Name)
		}
		if p.StockQuantity < wanted[id] {
			return nil, Rule("items", "only %d of %s left in stock", p.StockQuantity, p.Name)
		}
	}
	return byID, nil
}

func loadLineServices(tx *gorm.DB, lines []OrderLine) (map[uint]ProductService, error) {
	var ids []uint
	var productIDs []uint
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
		for _, s := range l.Services {
			ids = append(ids, s.ServiceID)
		}
	}
	if len(ids) == 0 {
		return map[uint]ProductService{}, nil
	}

	var services []ProductService
	if err := tx.Where("id IN ?", uniqueIDs(ids)).Find(&services).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]ProductService, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}

	type link struct {
		ProductID        uint
		ProductServiceID uint
	}
	var links []link
	if err := tx.Table("product_service_links").
		Where("product_id IN ?", uniqueIDs(productIDs)).
		Find(&links).Error; err != nil {
		return nil, err
	}
	offered := make(map[link]bool, len(links))
	for _, l := range links {
		offered[l] = true
	}

	for _, l := range lines {
		for _, s := range l.Services {
			svc, ok := byID[s.ServiceID]
			if !ok {
				return nil, ErrServiceNotFound
			}
			if !svc.IsActive {
				return nil, Rule("services", "%s is no longer offered", svc.Name)
			}
			if !offered[link{ProductID: l.ProductID, ProductServiceID: s.ServiceID}] {
				return nil, Rule("services", "%s is not available for this product", svc.Name)
			}
		}
	}
	return byID, nil
}

// bookService records the add-on for an order item. Scheduled services that
// need a provider get one assigned now; the rest wait for dispatch.
func bookService(tx *gorm.DB, itemID uint, svc ProductService, ls LineService, quantity int, now time.Time, loc *time.Location) (*ServiceBooking, error) {
	booking := &ServiceBooking{
		OrderItemID:      itemID,
		ProductServiceID: svc.ID,
		ServiceName:      svc.Name,
		Price:            svc.Price,
		Quantity:         quantity,
		DurationMinutes:  svc.DurationMinutes,
		Status:           BookingStatusPending,
	}

	if ls.ScheduledAt != nil {
		if !ls.ScheduledAt.After(now) {
			return nil, Rule("scheduled_at", "appointment for %s must be in the future", svc.Name)
		}
		at := *ls.ScheduledAt
		booking.ScheduledAt = &at
		if svc.RequiresProvider {
			provider, err := assignProvider(tx, &svc, at, loc, ls.ProviderID)
			if err != nil {
				return nil, err
			}
			booking.ServiceProviderID = &provider.ID
		}
		booking.Status = BookingStatusScheduled
	} else if ls.ProviderID != nil {
		return nil, Rule("scheduled_at", "choose an appointment time for %s", svc.Name)
	}

	if err := tx.Create(booking).Error; err != nil {
		return nil, err
	}
	return booking, nil
}

func decrementStock(tx *gorm.DB, productID uint, qty int) error {
	res := tx.Model(&Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Rule("items", "insufficient stock")
	}
	return nil
}

func lockCoupon(tx *gorm.DB, code string) (*Coupon, error) {
	var coupon Coupon
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", NormalizeCouponCode(code)).
		First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Rule("coupon_code", "coupon %s does not exist", NormalizeCouponCode(code))
		}
		return nil, err
	}
	return &coupon, nil
}

// --- Queries ---

func (r *OrdersRepository) ListOrders(ctx context.Context, offset, limit int, filters OrderFilters) ([]Order, int64, error) {
	var orders []Order
	var total int64

	query := r.db.WithContext(ctx).Model(&Order{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filters.PaymentStatus)
	}
	if filters.Channel != "" {
		query = query.Where("channel = ?", filters.Channel)
	}
	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where("order_number ILIKE ? OR customer_email ILIKE ? OR customer_name ILIKE ?", like, like, like)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", CalendarDay(*filters.DateFrom, r.loc))
	}
	if filters.DateTo != nil {
		query = query.Where("created_at < ?", CalendarDay(*filters.DateTo, r.loc).AddDate(0, 0, 1))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrdersRepository) GetOrder(ctx context.Context, id uint) (*Order, error) {
	return r.findOrder(ctx, "id = ?", id)
}

func (r *OrdersRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.findOrder(ctx, "order_number = ?", number)
}

func (r *OrdersRepository) findOrder(ctx context.Context, cond string, arg any) (*Order, error) {
	var order Order
	if err := r.db.WithContext(ctx).
		Preload("Items.Bookings.ServiceProvider").
		Preload("Payment").
		Where(cond, arg).
		First(&order).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}

// CancelOrder cancels on behalf of a customer. userID must own the order.
func (r *OrdersRepository) CancelOrder(ctx context.Context, number string, userID uint, now time.Time) (*Order, error) {
	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "order_number = ?", number)
		if err != nil {
			return err
		}
		if order.UserID == nil || *order.UserID != userID {
			return ErrForbidden
		}
		if !order.CustomerCancellable() {
			return Rule("status", "a %s order can no longer be cancelled", order.Status)
		}
		id = order.ID
		return cancelLocked(tx, order, now)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

// UpdateStatus moves an order along its lifecycle. Cancelling restocks.
func (r *OrdersRepository) UpdateStatus(ctx context.Context, id uint, status string, now time.Time) (*Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if !CanTransitionOrder(order.Status, status) {
			return Rule("status", "cannot move order from %s to %s", order.Status, status)
		}
		if status == OrderStatusCancelled {
			return cancelLocked(tx, order, now)
		}
		updates := map[string]any{"status": status}
		if status == OrderStatusCompleted && order.PaymentMethod == PaymentMethodCOD && order.PaymentStatus == PaymentStatusPending {
			updates["payment_status"] = PaymentStatusPaid
			if err := tx.Model(&Payment{}).Where("order_id = ?", order.ID).
				Updates(map[string]any{"status": PaymentStatusPaid, "paid_at": now}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Order{}).Where("id = ?", order.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

func (r *OrdersRepository) UpdatePaymentStatus(ctx context.Context, id uint, status string, now time.Time) (*Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if order.PaymentStatus == status {
			return nil
		}
		if status == PaymentStatusRefunded && order.PaymentStatus != PaymentStatusPaid {
			return Rule("payment_status", "only paid orders can be refunded")
		}
		paymentUpdates := map[string]any{"status": status}
		if status == PaymentStatusPaid {
			paymentUpdates["paid_at"] = now
		}
		if err := tx.Model(&Payment{}).Where("order_id = ?", order.ID).Updates(paymentUpdates).Error; err != nil {
			return err
		}
		return tx.Model(&Order{}).Where("id = ?", order.ID).Update("payment_status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

func lockOrder(tx *gorm.DB, cond string, arg any) (*Order, error) {
	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(cond, arg).First(&order).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// cancelLocked restocks items, releases the coupon and cancels open bookings.
func cancelLocked(tx *gorm.DB, order *Order, now time.Time) error {
	for _, item := range order.Items {
		if err := tx.Unscoped().Model(&Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
			return err
		}
	}
	if order.CouponID != nil {
		if err := releaseCoupon(tx, *order.CouponID); err != nil {
			return err
		}
	}

	itemIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		itemIDs = append(itemIDs, item.ID)
	}
	if len(itemIDs) > 0 {
		if err := tx.Model(&ServiceBooking{}).
			Where("order_item_id IN ? AND status <> ?", itemIDs, BookingStatusCompleted).
			Update("status", BookingStatusCancelled).Error; err != nil {
			return err
		}
	}

	updates := map[string]any{"status": OrderStatusCancelled, "cancelled_at": now}
	if order.PaymentStatus == PaymentStatusPaid {
		updates["payment_status"] = PaymentStatusRefunded
		if err := tx.Model(&Payment{}).Where("order_id = ?", order.ID).
			Update("status", PaymentStatusRefunded).Error; err != nil {
			return err
		}
	}
	return tx.Model(&Order{}).Where("id = ?", order.ID).Updates(updates).Error
}

// DashboardStats summarises store activity since a given instant.
type DashboardStats struct {
	OrdersToday   int64           `json:"orders_today"`
	RevenueToday  decimal.Decimal `json:"revenue_today"`
	PendingOrders int64           `json:"pending_orders"`
	TotalOrders   int64           `json:"total_orders"`
}

func (r *OrdersRepository) Stats(ctx context.Context, since time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&Order{}).Where("created_at >= ?", since).Count(&stats.OrdersToday).Error; err != nil {
		return nil, err
	}
	var revenue struct {
		Revenue decimal.Decimal
	}
	if err := db.Model(&Order{}).
		Select("COALESCE(SUM(total), 0) AS revenue").
		Where("created_at >= ? AND status <> ?", since, OrderStatusCancelled).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	stats.RevenueToday = revenue.Revenue
	if err := db.Model(&Order{}).Where("status = ?", OrderStatusPending).Count(&stats.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
