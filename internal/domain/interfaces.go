package domain

import (
	"context"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/models"
)

type Repository interface {
	CreateBusiness(ctx context.Context, b *models.Business) error
	GetBusiness(ctx context.Context, id int64) (*models.Business, error)
	ListBusinesses(ctx context.Context) ([]*models.Business, error)
	UpsertOperatingHours(ctx context.Context, h *models.OperatingHours) error
	GetOperatingHours(ctx context.Context, businessID int64, weekday int) (*models.OperatingHours, error)
	ListOperatingHours(ctx context.Context, businessID int64) ([]*models.OperatingHours, error)
	DeleteOperatingHours(ctx context.Context, businessID int64, weekday int) error
	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	ListServicesByBusiness(ctx context.Context, businessID int64) ([]*models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListOccupyingBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	ListBookingsForDay(ctx context.Context, businessID int64, date time.Time) ([]*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithLock(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error)
}

// SlotCache keeps computed slot lists for display reads and per-key attempt counters.
// A miss is reported as ok == false with a nil error.
type SlotCache interface {
	GetSlots(ctx context.Context, businessID, serviceID int64, date time.Time) (slots []string, ok bool, err error)
	SetSlots(ctx context.Context, businessID, serviceID int64, date time.Time, slots []string) error
	InvalidateDay(ctx context.Context, businessID int64, date time.Time) error
	// InvalidateBusiness drops the cached lists of every date of the business.
	InvalidateBusiness(ctx context.Context, businessID int64) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	GetAvailableSlots(ctx context.Context, serviceID int64, date time.Time) ([]string, error)
	GetSlotGrid(ctx context.Context, serviceID int64, date time.Time) ([]availability.Slot, error)
	ResolveHours(ctx context.Context, businessID int64, date time.Time) (*models.OperatingHours, error)
	CheckSlot(ctx context.Context, serviceID int64, start time.Time) (bool, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ChangeStatus(ctx context.Context, bookingID, version int64, status, changedBy string) (*models.Booking, error)
}

type CatalogService interface {
	CreateBusiness(ctx context.Context, b *models.Business) error
	GetBusiness(ctx context.Context, id int64) (*models.Business, error)
	ListBusinesses(ctx context.Context) ([]*models.Business, error)
	SetOperatingHours(ctx context.Context, h *models.OperatingHours) error
	CloseWeekday(ctx context.Context, businessID int64, weekday int) error
	GetWeek(ctx context.Context, businessID int64) ([7]*models.OperatingHours, error)
	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	ListServices(ctx context.Context, businessID int64) ([]*models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) error
	ImportCatalog(ctx context.Context, catalog *models.Catalog) (int, error)
}

type ScheduleExporter interface {
	ExportDay(ctx context.Context, businessID int64, date time.Time) ([]byte, error)
}
