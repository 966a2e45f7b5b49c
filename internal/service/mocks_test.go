package service

import (
	"context"
	"io"
	"sync"
	"time"

	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBusiness(ctx context.Context, b *models.Business) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Business), args.Error(1)
}
func (m *mockRepo) ListBusinesses(ctx context.Context) ([]*models.Business, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Business), args.Error(1)
}
func (m *mockRepo) UpsertOperatingHours(ctx context.Context, h *models.OperatingHours) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockRepo) GetOperatingHours(ctx context.Context, businessID int64, weekday int) (*models.OperatingHours, error) {
	args := m.Called(ctx, businessID, weekday)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OperatingHours), args.Error(1)
}
func (m *mockRepo) ListOperatingHours(ctx context.Context, businessID int64) ([]*models.OperatingHours, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OperatingHours), args.Error(1)
}
func (m *mockRepo) DeleteOperatingHours(ctx context.Context, businessID int64, weekday int) error {
	return m.Called(ctx, businessID, weekday).Error(0)
}
func (m *mockRepo) CreateService(ctx context.Context, s *models.Service) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockRepo) ListServicesByBusiness(ctx context.Context, businessID int64) ([]*models.Service, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}
func (m *mockRepo) UpdateService(ctx context.Context, s *models.Service) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) ListOccupyingBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) ListBookingsForDay(ctx context.Context, businessID int64, date time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, businessID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) UpdateBookingStatusWithLock(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error) {
	args := m.Called(ctx, id, fromVersion, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetSlots(ctx context.Context, businessID, serviceID int64, date time.Time) ([]string, bool, error) {
	args := m.Called(ctx, businessID, serviceID, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]string), args.Bool(1), args.Error(2)
}
func (m *mockCache) SetSlots(ctx context.Context, businessID, serviceID int64, date time.Time, slots []string) error {
	return m.Called(ctx, businessID, serviceID, date, slots).Error(0)
}
func (m *mockCache) InvalidateDay(ctx context.Context, businessID int64, date time.Time) error {
	return m.Called(ctx, businessID, date).Error(0)
}
func (m *mockCache) InvalidateBusiness(ctx context.Context, businessID int64) error {
	return m.Called(ctx, businessID).Error(0)
}
func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type publishedEvent struct {
	eventType string
	payload   interface{}
}

type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.eventType)
	}
	return out
}

func discardLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
