package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductService is an add-on (installation, assembly, fitting...) that can be
// booked together with a product.
type ProductService struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	Name             string            `gorm:"not null" json:"name"`
	Description      string            `json:"description"`
	Price            decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"price"`
	DurationMinutes  int               `gorm:"not null;default:60" json:"duration_minutes"`
	RequiresProvider bool              `gorm:"not null" json:"requires_provider"`
	IsActive         bool              `gorm:"not null" json:"is_active"`
	Providers        []ServiceProvider `gorm:"many2many:service_provider_skills" json:"providers,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (s *ProductService) TableName() string {
	return "product_services"
}

func (s *ProductService) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// ServiceProvider is a staff member who fulfills booked services.
// WorkingDays holds comma separated weekday abbreviations ("mon,tue,...").
// StartTime and EndTime are "HH:MM" in the store's local time.
type ServiceProvider struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Name              string           `gorm:"not null" json:"name"`
	Email             string           `gorm:"uniqueIndex;not null" json:"email"`
	Phone             string           `json:"phone"`
	WorkingDays       string           `gorm:"not null;default:'mon,tue,wed,thu,fri'" json:"working_days"`
	StartTime         string           `gorm:"type:varchar(5);not null;default:'09:00'" json:"start_time"`
	EndTime           string           `gorm:"type:varchar(5);not null;default:'17:00'" json:"end_time"`
	MaxBookingsPerDay int              `gorm:"not null;default:8" json:"max_bookings_per_day"`
	IsActive          bool             `gorm:"not null" json:"is_active"`
	Services          []ProductService `gorm:"many2many:service_provider_skills" json:"services,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (p *ServiceProvider) TableName() string {
	return "service_providers"
}

// Offers reports whether the provider is skilled for serviceID.
func (p *ServiceProvider) Offers(serviceID uint) bool {
	for _, s := range p.Services {
		if s.ID == serviceID {
			return true
		}
	}
	return false
}

const (
	BookingStatusPending    = "pending"
	BookingStatusScheduled  = "scheduled"
	BookingStatusInProgress = "in_progress"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
)

// ServiceBooking is a service purchased with an order item. It snapshots the
// service name, price and duration at purchase time.
type ServiceBooking struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	OrderItemID       uint             `gorm:"not null;index" json:"order_item_id"`
	ProductServiceID  uint             `gorm:"not null;index" json:"product_service_id"`
	ServiceName       string           `gorm:"not null" json:"service_name"`
	Price             decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity          int              `gorm:"not null;default:1" json:"quantity"`
	DurationMinutes   int              `gorm:"not null" json:"duration_minutes"`
	ServiceProviderID *uint            `gorm:"index" json:"service_provider_id"`
	ServiceProvider   *ServiceProvider `gorm:"foreignKey:ServiceProviderID" json:"service_provider,omitempty"`
	ScheduledAt       *time.Time       `gorm:"index" json:"scheduled_at"`
	Status            string           `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (b *ServiceBooking) TableName() string {
	return "service_bookings"
}

// Window returns the booked time span. ok is false while unscheduled.
func (b *ServiceBooking) Window() (start, end time.Time, ok bool) {
	if b.ScheduledAt == nil {
		return time.Time{}, time.Time{}, false
	}
	start = *b.ScheduledAt
	return start, start.Add(time.Duration(b.DurationMinutes) * time.Minute), true
}

var bookingTransitions = map[string][]string{
	BookingStatusPending:    {BookingStatusScheduled, BookingStatusCancelled},
	BookingStatusScheduled:  {BookingStatusInProgress, BookingStatusCancelled, BookingStatusPending},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
}

// CanTransitionBooking reports whether a booking may move from one status to another.
func CanTransitionBooking(from, to string) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NormalizeWorkingDays lower-cases, de-duplicates and validates weekday abbreviations.
func NormalizeWorkingDays(days []string) (string, error) {
	seen := make(map[string]bool, len(days))
	out := make([]string, 0, len(days))
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if len(d) > 3 {
			d = d[:3]
		}
		if _, ok := weekdayAbbrev[d]; !ok {
			return "", Rule("working_days", "unknown weekday %q", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return "", Rule("working_days", "at least one working day is required")
	}
	return strings.Join(out, ","), nil
}
