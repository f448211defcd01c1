package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServicesRepository evaluates working hours and booking days in loc.
type ServicesRepository struct {
	db  *gorm.DB
	loc *time.Location
}

type BookingFilters struct {
	Status       string
	ProviderID   *uint
	Date         *time.Time
	Unassigned   bool
	UpcomingFrom *time.Time
}

func NewServicesRepository(db *gorm.DB, loc *time.Location) *ServicesRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &ServicesRepository{db: db, loc: loc}
}

// --- Add-on services ---

func (r *ServicesRepository) ListServices(ctx context.Context, activeOnly bool) ([]ProductService, error) {
	var services []ProductService
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

func (r *ServicesRepository) GetService(ctx context.Context, id uint) (*ProductService, error) {
	var svc ProductService
	if err := r.db.WithContext(ctx).First(&svc, id).Error; err != nil {
		return nil, notFound(err, ErrServiceNotFound)
	}
	return &svc, nil
}

func (r *ServicesRepository) CreateService(ctx context.Context, svc *ProductService) error {
	return r.db.WithContext(ctx).Omit("Providers").Create(svc).Error
}

func (r *ServicesRepository) UpdateService(ctx context.Context, svc *ProductService) error {
	return r.db.WithContext(ctx).Omit("Providers").Save(svc).Error
}

// DeleteService removes a service that was never booked. Booked services
// keep their history and can only be deactivated.
func (r *ServicesRepository) DeleteService(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var svc ProductService
		if err := tx.First(&svc, id).Error; err != nil {
			return notFound(err, ErrServiceNotFound)
		}
		var booked int64
		if err := tx.Model(&ServiceBooking{}).Where("product_service_id = ?", id).Count(&booked).Error; err != nil {
			return err
		}
		if booked > 0 {
			return Rule("service", "cannot delete a service with bookings, deactivate it instead")
		}
		if err := tx.Model(&svc).Association("Providers").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM product_service_links WHERE product_service_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&svc).Error
	})
}

// --- Providers ---

func (r *ServicesRepository) ListProviders(ctx context.Context, serviceID *uint, activeOnly bool) ([]ServiceProvider, error) {
	var providers []ServiceProvider
	query := r.db.WithContext(ctx).Preload("Services").Order("service_providers.name ASC")
	if activeOnly {
		query = query.Where("service_providers.is_active = ?", true)
	}
	if serviceID != nil {
		query = query.
			Joins("JOIN service_provider_skills ON service_provider_skills.service_provider_id = service_providers.id").
			Where("service_provider_skills.product_service_id = ?", *serviceID)
	}
	if err := query.Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *ServicesRepository) GetProvider(ctx context.Context, id uint) (*ServiceProvider, error) {
	var provider ServiceProvider
	if err := r.db.WithContext(ctx).Preload("Services").First(&provider, id).Error; err != nil {
		return nil, notFound(err, ErrProviderNotFound)
	}
	return &provider, nil
}

// SaveProvider creates or updates a provider and replaces its skills.
func (r *ServicesRepository) SaveProvider(ctx context.Context, provider *ServiceProvider, serviceIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var clash int64
		if err := tx.Model(&ServiceProvider{}).
			Where("email = ? AND id <> ?", provider.Email, provider.ID).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return Rule("email", "email %q is already used by another provider", provider.Email)
		}

		var services []ProductService
		if len(serviceIDs) > 0 {
			if err := tx.Where("id IN ?", serviceIDs).Find(&services).Error; err != nil {
				return err
			}
			if len(services) != len(uniqueIDs(serviceIDs)) {
				return Rule("service_ids", "one or more services do not exist")
			}
		}

		if err := tx.Omit("Services").Save(provider).Error; err != nil {
			return err
		}
		if err := tx.Model(provider).Association("Services").Replace(services); err != nil {
			return err
		}
		provider.Services = services
		return nil
	})
}

// DeleteProvider refuses while the provider still has open bookings.
func (r *ServicesRepository) DeleteProvider(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var provider ServiceProvider
		if err := tx.First(&provider, id).Error; err != nil {
			return notFound(err, ErrProviderNotFound)
		}
		var open int64
		if err := tx.Model(&ServiceBooking{}).
			Where("service_provider_id = ? AND status IN ?", id, []string{BookingStatusPending, BookingStatusScheduled, BookingStatusInProgress}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return Rule("provider", "provider has %d open bookings", open)
		}
		if err := tx.Model(&provider).Association("Services").Clear(); err != nil {
			return err
		}
		return tx.Delete(&provider).Error
	})
}

// AvailableProviders lists providers free to perform serviceID at at.
func (r *ServicesRepository) AvailableProviders(ctx context.Context, serviceID uint, at time.Time) ([]ServiceProvider, error) {
	svc, err := r.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	candidates, err := r.ListProviders(ctx, &serviceID, true)
	if err != nil {
		return nil, err
	}

	available := make([]ServiceProvider, 0, len(candidates))
	for i := range candidates {
		bookings, err := providerDayBookings(r.db.WithContext(ctx), candidates[i].ID, at, r.loc, 0)
		if err != nil {
			return nil, err
		}
		if CheckAvailability(&candidates[i], svc, at, r.loc, bookings) == nil {
			available = append(available, candidates[i])
		}
	}
	return available, nil
}

// --- Bookings ---

func (r *ServicesRepository) ListBookings(ctx context.Context, offset, limit int, filters BookingFilters) ([]ServiceBooking, int64, error) {
	var bookings []ServiceBooking
	var total int64

	query := r.db.WithContext(ctx).Model(&ServiceBooking{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.ProviderID != nil {
		query = query.Where("service_provider_id = ?", *filters.ProviderID)
	}
	if filters.Unassigned {
		query = query.Where("service_provider_id IS NULL")
	}
	if filters.Date != nil {
		from := CalendarDay(*filters.Date, r.loc)
		to := from.AddDate(0, 0, 1)
		query = query.Where("scheduled_at >= ? AND scheduled_at < ?", from, to)
	}
	if filters.UpcomingFrom != nil {
		query = query.Where("scheduled_at >= ? AND status IN ?", *filters.UpcomingFrom,
			[]string{BookingStatusPending, BookingStatusScheduled})
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.
		Preload("ServiceProvider").
		Order("scheduled_at ASC NULLS LAST, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *ServicesRepository) GetBooking(ctx context.Context, id uint) (*ServiceBooking, error) {
	var booking ServiceBooking
	if err := r.db.WithContext(ctx).Preload("ServiceProvider").First(&booking, id).Error; err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return &booking, nil
}

// AssignBooking dispatches a booking to a provider at a given time after
// checking the provider's availability. The provider row is locked so two
// dispatchers cannot double book the same slot.
func (r *ServicesRepository) AssignBooking(ctx context.Context, bookingID, providerID uint, at time.Time) (*ServiceBooking, error) {
	var booking ServiceBooking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, bookingID).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if booking.Status == BookingStatusCompleted || booking.Status == BookingStatusCancelled {
			return Rule("status", "cannot assign a %s booking", booking.Status)
		}

		var svc ProductService
		if err := tx.First(&svc, booking.ProductServiceID).Error; err != nil {
			return notFound(err, ErrServiceNotFound)
		}
		svc.DurationMinutes = booking.DurationMinutes

		provider, err := lockProvider(tx, providerID)
		if err != nil {
			return err
		}
		dayBookings, err := providerDayBookings(tx, providerID, at, r.loc, booking.ID)
		if err != nil {
			return err
		}
		if err := CheckAvailability(provider, &svc, at, r.loc, dayBookings); err != nil {
			return err
		}

		booking.ServiceProviderID = &provider.ID
		booking.ScheduledAt = &at
		booking.Status = BookingStatusScheduled
		booking.ServiceProvider = provider
		return tx.Model(&booking).Omit(clause.Associations).Updates(map[string]any{
			"service_provider_id": provider.ID,
			"scheduled_at":        at,
			"status":              BookingStatusScheduled,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *ServicesRepository) UpdateBookingStatus(ctx context.Context, id uint, status string) (*ServiceBooking, error) {
	var booking ServiceBooking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, id).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if !CanTransitionBooking(booking.Status, status) {
			return Rule("status", "cannot move booking from %s to %s", booking.Status, status)
		}
		if status == BookingStatusScheduled && (booking.ServiceProviderID == nil || booking.ScheduledAt == nil) {
			return Rule("status", "assign a provider and time before scheduling")
		}
		booking.Status = status
		return tx.Model(&booking).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func lockProvider(tx *gorm.DB, id uint) (*ServiceProvider, error) {
	var provider ServiceProvider
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&provider, id).Error; err != nil {
		return nil, notFound(err, ErrProviderNotFound)
	}
	if err := tx.Model(&provider).Association("Services").Find(&provider.Services); err != nil {
		return nil, err
	}
	return &provider, nil
}

// providerDayBookings loads the provider's non-cancelled bookings on the store
// day (in loc) that contains day.
func providerDayBookings(db *gorm.DB, providerID uint, day time.Time, loc *time.Location, excludeID uint) ([]ServiceBooking, error) {
	from, to := DayBounds(day, loc)
	var bookings []ServiceBooking
	query := db.Where("service_provider_id = ? AND status <> ? AND scheduled_at >= ? AND scheduled_at < ?",
		providerID, BookingStatusCancelled, from, to)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// assignProvider picks the provider for a scheduled service inside an open
// transaction: the preferred one when given, else the first available.
func assignProvider(tx *gorm.DB, svc *ProductService, at time.Time, loc *time.Location, preferredID *uint) (*ServiceProvider, error) {
	if preferredID != nil {
		provider, err := lockProvider(tx, *preferredID)
		if err != nil {
			return nil, err
		}
		bookings, err := providerDayBookings(tx, provider.ID, at, loc, 0)
		if err != nil {
			return nil, err
		}
		if err := CheckAvailability(provider, svc, at, loc, bookings); err != nil {
			return nil, err
		}
		return provider, nil
	}

	var ids []uint
	if err := tx.Table("service_provider_skills").
		Joins("JOIN service_providers ON service_providers.id = service_provider_skills.service_provider_id").
		Where("service_provider_skills.product_service_id = ? AND service_providers.is_active = ?", svc.ID, true).
		Order("service_providers.id ASC").
		Pluck("service_providers.id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		provider, err := lockProvider(tx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		bookings, err := providerDayBookings(tx, id, at, loc, 0)
		if err != nil {
			return nil, err
		}
		if CheckAvailability(provider, svc, at, loc, bookings) == nil {
			return provider, nil
		}
	}
	return nil, Rule("scheduled_at", "no provider is available for %s at %s", svc.Name, at.In(loc).Format("2006-01-02 15:04"))
}
