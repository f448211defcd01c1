package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

const listSize = 10

type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (*models.DashboardStats, error)
}

type StockSource interface {
	LowStock(ctx context.Context, threshold, limit int) ([]models.Product, error)
}

type BookingSource interface {
	ListBookings(ctx context.Context, offset, limit int, filters models.BookingFilters) ([]models.ServiceBooking, int64, error)
}

type Response struct {
	*models.DashboardStats
	LowStock         []models.Product        `json:"low_stock"`
	UpcomingBookings []models.ServiceBooking `json:"upcoming_bookings"`
	UnassignedCount  int64                   `json:"unassigned_bookings"`
}

type DashboardHandler struct {
	orders            StatsSource
	products          StockSource
	bookings          BookingSource
	lowStockThreshold int
	loc               *time.Location
	now               func() time.Time
}

// NewDashboardHandler counts "today" from midnight in loc, UTC when nil.
func NewDashboardHandler(orders StatsSource, products StockSource, bookings BookingSource, lowStockThreshold int, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{
		orders:            orders,
		products:          products,
		bookings:          bookings,
		lowStockThreshold: lowStockThreshold,
		loc:               loc,
		now:               time.Now,
	}
}

// HandleGet reports today's sales, stock to reorder and the next bookings.
func (h *DashboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	midnight, _ := models.DayBounds(now, h.loc)

	stats, err := h.orders.Stats(ctx, midnight)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to load dashboard")
		return
	}
	lowStock, err := h.products.LowStock(ctx, h.lowStockThreshold, listSize)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to load dashboard")
		return
	}
	upcoming, _, err := h.bookings.ListBookings(ctx, 0, listSize, models.BookingFilters{UpcomingFrom: &now})
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to load dashboard")
		return
	}
	_, unassigned, err := h.bookings.ListBookings(ctx, 0, 1, models.BookingFilters{
		Status:     models.BookingStatusPending,
		Unassigned: true,
	})
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to load dashboard")
		return
	}

	if lowStock == nil {
		lowStock = []models.Product{}
	}
	if upcoming == nil {
		upcoming = []models.ServiceBooking{}
	}
	httpx.WriteJSON(w, http.StatusOK, Response{
		DashboardStats:   stats,
		LowStock:         lowStock,
		UpcomingBookings: upcoming,
		UnassignedCount:  unassigned,
	})
}
