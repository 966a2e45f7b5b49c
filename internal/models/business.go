package models

import "time"

type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zipcode   string    `json:"zipcode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperatingHours is the open window and per-slot capacity of a business on one weekday.
type OperatingHours struct {
	ID                   int64     `json:"id"`
	BusinessID           int64     `json:"business_id"`
	Weekday              int       `json:"weekday"` // 0 = Monday ... 6 = Sunday
	OpenTime             TimeOfDay `json:"open_time"`
	CloseTime            TimeOfDay `json:"close_time"`
	MaxConcurrentPerSlot int       `json:"max_concurrent_per_slot"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Service struct {
	ID                 int64     `json:"id"`
	BusinessID         int64     `json:"business_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	DurationMinutes    int       `json:"duration_minutes"`
	PriceCents         int64     `json:"price_cents"`
	CompetesWithOthers bool      `json:"competes_with_others"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Duration returns the service length.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// BookingFilter selects occupying bookings on one exact calendar date.
// Exactly one of ServiceID or BusinessID is set. With BusinessID, only bookings
// of services that compete for the shared pool are returned.
type BookingFilter struct {
	ServiceID  int64
	BusinessID int64
	Date       time.Time
}
