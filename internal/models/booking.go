package models

import (
	"slices"
	"time"
)

type Booking struct {
	ID             int64     `json:"id"`
	ServiceID      int64     `json:"service_id"`
	BusinessID     int64     `json:"business_id"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	ScheduledStart time.Time `json:"scheduled_start"`
	Status         string    `json:"status"` // pending, confirmed, canceled, completed
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`

	// CompetesWithOthers mirrors the flag of the booked service.
	CompetesWithOthers bool `json:"competes_with_others"`
}

// SlotDate is the calendar date the booking occupies, YYYY-MM-DD.
func (b *Booking) SlotDate() string {
	return b.ScheduledStart.Format(DateLayout)
}

// SlotTime is the grid key of the booking: its start time-of-day.
func (b *Booking) SlotTime() TimeOfDay {
	return TimeOfDayOf(b.ScheduledStart)
}

// OccupyingStatuses lists the statuses that hold a seat in a slot.
var OccupyingStatuses = []string{StatusPending, StatusConfirmed}

// OccupiesCapacity reports whether a booking in this status counts against slot capacity.
func OccupiesCapacity(status string) bool {
	return slices.Contains(OccupyingStatuses, status)
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

var statusTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCanceled, StatusCompleted},
	StatusCanceled:  {StatusPending},
}

// CanTransition reports whether a booking may move from one status to another.
// Completed bookings are final.
func CanTransition(from, to string) bool {
	return slices.Contains(statusTransitions[from], to)
}
