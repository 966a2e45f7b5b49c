package availability

import (
	"time"

	"slotbook/internal/models"
)

// Slot is one step of the operating-hours grid with its occupancy.
type Slot struct {
	Start     models.TimeOfDay `json:"start"`
	Booked    int              `json:"booked"`
	Capacity  int              `json:"capacity"`
	Available bool             `json:"available"`
}

// Occupancy counts bookings in scope that hold a seat on date, keyed by start time-of-day.
// Bookings on other calendar dates are ignored.
func Occupancy(scope Scope, date time.Time, bookings []*models.Booking) map[models.TimeOfDay]int {
	occupied := make(map[models.TimeOfDay]int)
	for _, b := range bookings {
		if b == nil || !models.OccupiesCapacity(b.Status) || !scope.Includes(b) {
			continue
		}
		if !models.SameDate(b.ScheduledStart, date) {
			continue
		}
		occupied[b.SlotTime()]++
	}
	return occupied
}

// BuildGrid walks the grid open, open+d, ... up to and including close-d and
// annotates every step with its occupancy. It returns nil when hours is nil
// (closed) or the service does not fit into the open window.
func BuildGrid(hours *models.OperatingHours, svc *models.Service, date time.Time, bookings []*models.Booking) []Slot {
	if hours == nil || svc == nil {
		return nil
	}
	step := svc.Duration()
	if step < time.Minute {
		return nil
	}

	lastStart := hours.CloseTime.Add(-step)
	if lastStart < hours.OpenTime {
		return nil
	}

	occupied := Occupancy(ScopeFor(svc), date, bookings)

	grid := make([]Slot, 0, int(lastStart-hours.OpenTime)/svc.DurationMinutes+1)
	for t := hours.OpenTime; t <= lastStart; t = t.Add(step) {
		booked := occupied[t]
		grid = append(grid, Slot{
			Start:     t,
			Booked:    booked,
			Capacity:  hours.MaxConcurrentPerSlot,
			Available: booked < hours.MaxConcurrentPerSlot,
		})
	}
	return grid
}

// ComputeAvailableSlots returns the HH:MM start times on date that still have
// free capacity, ascending. The result is never nil.
func ComputeAvailableSlots(hours *models.OperatingHours, svc *models.Service, date time.Time, bookings []*models.Booking) []string {
	slots := []string{}
	for _, s := range BuildGrid(hours, svc, date, bookings) {
		if s.Available {
			slots = append(slots, s.Start.String())
		}
	}
	return slots
}

// Lookup finds the grid step starting at start. ok is false when start is off the grid.
func Lookup(grid []Slot, start models.TimeOfDay) (Slot, bool) {
	for _, s := range grid {
		if s.Start == start {
			return s, true
		}
	}
	return Slot{}, false
}

// IsAvailable reports whether a booking of svc may start at start on date.
func IsAvailable(hours *models.OperatingHours, svc *models.Service, date time.Time, bookings []*models.Booking, start models.TimeOfDay) bool {
	s, ok := Lookup(BuildGrid(hours, svc, date, bookings), start)
	return ok && s.Available
}
