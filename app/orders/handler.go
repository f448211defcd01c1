package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type Response struct {
	Total  int            `json:"total"`
	Orders []models.Order `json:"orders"`
}

type OrderProvider interface {
	ListOrders(ctx context.Context, offset, limit int, filters models.OrderFilters) ([]models.Order, int64, error)
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	CancelOrder(ctx context.Context, number string, userID uint, now time.Time) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uint, status string, now time.Time) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uint, status string, now time.Time) (*models.Order, error)
}

// OrderHandler serves both the customer order history and the admin order desk.
type OrderHandler struct {
	repo OrderProvider
	now  func() time.Time
}

func NewOrderHandler(r OrderProvider) *OrderHandler {
	return &OrderHandler{repo: r, now: time.Now}
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, filters models.OrderFilters) {
	offset, limit := httpx.Pagination(r)
	orders, total, err := h.repo.ListOrders(r.Context(), offset, limit, filters)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Total: int(total), Orders: orders})
}

// HandleMyOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleMyOrders(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	h.list(w, r, models.OrderFilters{UserID: &user.ID})
}

// HandleMyOrder returns one of the caller's orders by number.
func (h *OrderHandler) HandleMyOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	order, err := h.repo.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to retrieve order")
		return
	}
	if order.UserID == nil || *order.UserID != user.ID {
		httpx.WriteDomainError(w, r, models.ErrForbidden, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	order, err := h.repo.CancelOrder(r.Context(), r.PathValue("number"), user.ID, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to cancel order")
		return
	}
	httpx.Log(r.Context()).WithField("order_number", order.OrderNumber).Info("order cancelled by customer")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

// HandleAdminList lists every order. Dates are YYYY-MM-DD; date_to is inclusive.
func (h *OrderHandler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.OrderFilters{
		Search:   strings.TrimSpace(q.Get("q")),
		DateFrom: parseDate(q.Get("date_from")),
		DateTo:   parseDate(q.Get("date_to")),
	}
	if s := q.Get("status"); models.ValidOrderStatus(s) {
		filters.Status = s
	}
	if s := q.Get("payment_status"); models.ValidPaymentStatus(s) {
		filters.PaymentStatus = s
	}
	if c := q.Get("channel"); c == models.ChannelOnline || c == models.ChannelPOS {
		filters.Channel = c
	}
	h.list(w, r, filters)
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *OrderHandler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to retrieve order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered completed cancelled"`
}

func (h *OrderHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input statusRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	order, err := h.repo.UpdateStatus(r.Context(), id, input.Status, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update order status")
		return
	}
	httpx.Log(r.Context()).WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}).Info("order status updated")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
}

func (h *OrderHandler) HandleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input paymentStatusRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	order, err := h.repo.UpdatePaymentStatus(r.Context(), id, input.PaymentStatus, h.now())
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update payment status")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Payment status updated successfully",
		"order":   order,
	})
}
