package models

import (
	"fmt"
	"strings"
	"time"
)

var weekdayAbbrev = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// WorksOn reports whether day is one of the provider's working days.
func (p *ServiceProvider) WorksOn(day time.Weekday) bool {
	for _, d := range strings.Split(p.WorkingDays, ",") {
		if wd, ok := weekdayAbbrev[strings.TrimSpace(d)]; ok && wd == day {
			return true
		}
	}
	return false
}

// ShiftOn returns the provider's working window on the calendar day of t,
// read in t's location.
func (p *ServiceProvider) ShiftOn(t time.Time) (start, end time.Time, err error) {
	startMin, err := ParseClock(p.StartTime)
	if err != nil {
		return start, end, err
	}
	endMin, err := ParseClock(p.EndTime)
	if err != nil {
		return start, end, err
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.Add(time.Duration(startMin) * time.Minute), midnight.Add(time.Duration(endMin) * time.Minute), nil
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return h*60 + m, nil
}

// CheckAvailability decides whether provider can perform svc starting at at.
// Working days and hours are evaluated in loc, the store's time zone, no
// matter which offset at was written with. dayBookings are the provider's
// other non-cancelled bookings on that store day.
// A nil result means the slot is free; otherwise a *RuleError explains why not.
func CheckAvailability(provider *ServiceProvider, svc *ProductService, at time.Time, loc *time.Location, dayBookings []ServiceBooking) error {
	at = at.In(loc)
	if !provider.IsActive {
		return Rule("provider_id", "%s is not active", provider.Name)
	}
	if !provider.Offers(svc.ID) {
		return Rule("provider_id", "%s does not offer %s", provider.Name, svc.Name)
	}
	if !provider.WorksOn(at.Weekday()) {
		return Rule("scheduled_at", "%s does not work on %s", provider.Name, at.Weekday())
	}

	shiftStart, shiftEnd, err := provider.ShiftOn(at)
	if err != nil {
		return Rule("provider_id", "%s has invalid working hours: %v", provider.Name, err)
	}
	end := at.Add(svc.Duration())
	if at.Before(shiftStart) || end.After(shiftEnd) {
		return Rule("scheduled_at", "%s works between %s and %s", provider.Name, provider.StartTime, provider.EndTime)
	}

	if provider.MaxBookingsPerDay > 0 && len(dayBookings) >= provider.MaxBookingsPerDay {
		return Rule("scheduled_at", "%s is fully booked on %s", provider.Name, at.Format("2006-01-02"))
	}

	for _, b := range dayBookings {
		bStart, bEnd, ok := b.Window()
		if !ok {
			continue
		}
		if at.Before(bEnd) && bStart.Before(end) {
			return Rule("scheduled_at", "%s already has a booking at %s", provider.Name, bStart.In(loc).Format("15:04"))
		}
	}
	return nil
}

// DayBounds returns [midnight, next midnight) of the day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := CalendarDay(t.In(loc), loc)
	return start, start.AddDate(0, 0, 1)
}

// CalendarDay returns midnight in loc of t's year, month and day, ignoring
// t's own location. Date-only filters parsed as UTC are anchored with it.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
