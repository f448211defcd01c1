// Package servicemgmt administers add-on services, the providers who perform
// them and the bookings dispatched to those providers.
package servicemgmt

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type ServiceStore interface {
	ListServices(ctx context.Context, activeOnly bool) ([]models.ProductService, error)
	GetService(ctx context.Context, id uint) (*models.ProductService, error)
	CreateService(ctx context.Context, svc *models.ProductService) error
	UpdateService(ctx context.Context, svc *models.ProductService) error
	DeleteService(ctx context.Context, id uint) error

	ListProviders(ctx context.Context, serviceID *uint, activeOnly bool) ([]models.ServiceProvider, error)
	GetProvider(ctx context.Context, id uint) (*models.ServiceProvider, error)
	SaveProvider(ctx context.Context, provider *models.ServiceProvider, serviceIDs []uint) error
	DeleteProvider(ctx context.Context, id uint) error
	AvailableProviders(ctx context.Context, serviceID uint, at time.Time) ([]models.ServiceProvider, error)

	ListBookings(ctx context.Context, offset, limit int, filters models.BookingFilters) ([]models.ServiceBooking, int64, error)
	GetBooking(ctx context.Context, id uint) (*models.ServiceBooking, error)
	AssignBooking(ctx context.Context, bookingID, providerID uint, at time.Time) (*models.ServiceBooking, error)
	UpdateBookingStatus(ctx context.Context, id uint, status string) (*models.ServiceBooking, error)
}

type ServiceHandler struct {
	repo ServiceStore
	now  func() time.Time
}

func NewServiceHandler(r ServiceStore) *ServiceHandler {
	return &ServiceHandler{repo: r, now: time.Now}
}

// --- Add-on services ---

type serviceRequest struct {
	Name             string          `json:"name" validate:"required,max=150"`
	Description      string          `json:"description" validate:"max=2000"`
	Price            decimal.Decimal `json:"price" validate:"gte=0"`
	DurationMinutes  int             `json:"duration_minutes" validate:"required,gte=5,lte=1440"`
	RequiresProvider *bool           `json:"requires_provider"`
	IsActive         *bool           `json:"is_active"`
}

func (in *serviceRequest) apply(svc *models.ProductService) {
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = in.Description
	svc.Price = in.Price.Round(2)
	svc.DurationMinutes = in.DurationMinutes
	if in.RequiresProvider != nil {
		svc.RequiresProvider = *in.RequiresProvider
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
}

func (h *ServiceHandler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServices(r.Context(), httpx.QueryBool(r, "active"))
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch services")
		return
	}
	if services == nil {
		services = []models.ProductService{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (h *ServiceHandler) HandleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	svc, err := h.repo.GetService(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch service")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, svc)
}

func (h *ServiceHandler) HandleCreateService(w http.ResponseWriter, r *http.Request) {
	var input serviceRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	svc := &models.ProductService{IsActive: true}
	input.apply(svc)
	if err := h.repo.CreateService(r.Context(), svc); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create service")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Service created successfully",
		"service": svc,
	})
}

func (h *ServiceHandler) HandleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input serviceRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	svc, err := h.repo.GetService(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update service")
		return
	}
	input.apply(svc)
	if err := h.repo.UpdateService(r.Context(), svc); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update service")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Service updated successfully",
		"service": svc,
	})
}

func (h *ServiceHandler) HandleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteService(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete service")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Service deleted successfully",
	})
}

// --- Providers ---

type providerRequest struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone" validate:"max=30"`
	WorkingDays       []string `json:"working_days" validate:"required,min=1"`
	StartTime         string   `json:"start_time" validate:"required,len=5"`
	EndTime           string   `json:"end_time" validate:"required,len=5"`
	MaxBookingsPerDay int      `json:"max_bookings_per_day" validate:"required,gte=1,lte=100"`
	ServiceIDs        []uint   `json:"service_ids" validate:"dive,gt=0"`
	IsActive          *bool    `json:"is_active"`
}

func (in *providerRequest) apply(p *models.ServiceProvider) error {
	days, err := models.NormalizeWorkingDays(in.WorkingDays)
	if err != nil {
		return err
	}
	start, err := models.ParseClock(in.StartTime)
	if err != nil {
		return models.Rule("start_time", "must be HH:MM")
	}
	end, err := models.ParseClock(in.EndTime)
	if err != nil {
		return models.Rule("end_time", "must be HH:MM")
	}
	if end <= start {
		return models.Rule("end_time", "must be after start_time")
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Email = models.NormalizeEmail(in.Email)
	p.Phone = strings.TrimSpace(in.Phone)
	p.WorkingDays = days
	p.StartTime = in.StartTime
	p.EndTime = in.EndTime
	p.MaxBookingsPerDay = in.MaxBookingsPerDay
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// HandleListProviders lists providers, optionally only those skilled for service_id.
func (h *ServiceHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.repo.ListProviders(r.Context(), httpx.QueryUint(r, "service_id"), httpx.QueryBool(r, "active"))
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch providers")
		return
	}
	if providers == nil {
		providers = []models.ServiceProvider{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (h *ServiceHandler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	provider, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch provider")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, provider)
}

func (h *ServiceHandler) HandleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var input providerRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	provider := &models.ServiceProvider{IsActive: true}
	if err := input.apply(provider); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create provider")
		return
	}
	if err := h.repo.SaveProvider(r.Context(), provider, input.ServiceIDs); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to create provider")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":  "Provider created successfully",
		"provider": provider,
	})
}

func (h *ServiceHandler) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input providerRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	provider, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update provider")
		return
	}
	if err := input.apply(provider); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update provider")
		return
	}
	if err := h.repo.SaveProvider(r.Context(), provider, input.ServiceIDs); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update provider")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Provider updated successfully",
		"provider": provider,
	})
}

func (h *ServiceHandler) HandleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteProvider(r.Context(), id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete provider")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Provider deleted successfully",
	})
}

// AvailableProvider is the public view of a provider offered to shoppers.
type AvailableProvider struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// HandleAvailableProviders answers which providers can perform a service at
// the RFC3339 time given in ?at=.
func (h *ServiceHandler) HandleAvailableProviders(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		httpx.WriteDomainError(w, r, models.Rule("at", "must be an RFC3339 time"), "")
		return
	}
	if !at.After(h.now()) {
		httpx.WriteDomainError(w, r, models.Rule("at", "must be in the future"), "")
		return
	}

	providers, err := h.repo.AvailableProviders(r.Context(), id, at)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to check availability")
		return
	}
	out := make([]AvailableProvider, 0, len(providers))
	for _, p := range providers {
		out = append(out, AvailableProvider{ID: p.ID, Name: p.Name})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"service_id": id,
		"at":         at,
		"providers":  out,
	})
}

// --- Bookings ---

type BookingsResponse struct {
	Total    int                     `json:"total"`
	Bookings []models.ServiceBooking `json:"bookings"`
}

// HandleListBookings is the dispatch board. date is YYYY-MM-DD in the
// store time zone.
func (h *ServiceHandler) HandleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.BookingFilters{
		ProviderID: httpx.QueryUint(r, "provider_id"),
		Unassigned: httpx.QueryBool(r, "unassigned"),
	}
	if s := q.Get("status"); validBookingStatus(s) {
		filters.Status = s
	}
	if d := q.Get("date"); d != "" {
		if day, err := time.Parse(time.DateOnly, d); err == nil {
			filters.Date = &day
		}
	}

	offset, limit := httpx.Pagination(r)
	bookings, total, err := h.repo.ListBookings(r.Context(), offset, limit, filters)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch bookings")
		return
	}
	if bookings == nil {
		bookings = []models.ServiceBooking{}
	}
	httpx.WriteJSON(w, http.StatusOK, BookingsResponse{Total: int(total), Bookings: bookings})
}

func validBookingStatus(s string) bool {
	switch s {
	case models.BookingStatusPending, models.BookingStatusScheduled, models.BookingStatusInProgress,
		models.BookingStatusCompleted, models.BookingStatusCancelled:
		return true
	}
	return false
}

func (h *ServiceHandler) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch booking")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, booking)
}

type assignRequest struct {
	ProviderID  uint      `json:"provider_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

func (h *ServiceHandler) HandleAssignBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input assignRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	if !input.ScheduledAt.After(h.now()) {
		httpx.WriteDomainError(w, r, models.Rule("scheduled_at", "must be in the future"), "")
		return
	}

	booking, err := h.repo.AssignBooking(r.Context(), id, input.ProviderID, input.ScheduledAt)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to assign booking")
		return
	}
	httpx.Log(r.Context()).WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"provider_id":  input.ProviderID,
		"scheduled_at": input.ScheduledAt.Format(time.RFC3339),
	}).Info("booking assigned")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Booking assigned successfully",
		"booking": booking,
	})
}

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending scheduled in_progress completed cancelled"`
}

func (h *ServiceHandler) HandleUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input bookingStatusRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	booking, err := h.repo.UpdateBookingStatus(r.Context(), id, input.Status)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update booking status")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Booking status updated successfully",
		"booking": booking,
	})
}
