package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
	"slotbook/internal/schedule"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo       domain.Repository
	resolver   *schedule.Resolver
	cache      domain.SlotCache
	eventBus   domain.EventPublisher
	cfg        config.BookingConfig
	cacheSlots bool
	now        func() time.Time
	logger     *zerolog.Logger
}

// NewBookingService wires the read path and the booking collaborator.
// cache and eventBus may be nil.
func NewBookingService(repo domain.Repository, cache domain.SlotCache, eventBus domain.EventPublisher, cfg config.BookingConfig, logger *zerolog.Logger) *BookingService {
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if cfg.RateLimitAttempts <= 0 {
		cfg.RateLimitAttempts = models.DefaultBookingAttempts
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = models.DefaultBookingAttemptsWindow
	}
	return &BookingService{
		repo:       repo,
		resolver:   schedule.NewResolver(repo),
		cache:      cache,
		eventBus:   eventBus,
		cfg:        cfg,
		cacheSlots: cache != nil && cfg.SlotCacheTTL >= 0,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the clock used for past/advance validation.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// GetAvailableSlots returns the free HH:MM starts of a service on date.
// A closed day yields an empty list.
func (s *BookingService) GetAvailableSlots(ctx context.Context, serviceID int64, date time.Time) ([]string, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	date = models.DateOnly(date)

	if s.cacheSlots {
		slots, ok, err := s.cache.GetSlots(ctx, svc.BusinessID, svc.ID, date)
		if err != nil {
			s.logger.Warn().Err(err).Int64("service_id", svc.ID).Msg("slot cache read failed")
		}
		if ok {
			metrics.IncSlotComputation("cache_hit")
			return slots, nil
		}
	}

	hours, bookings, err := s.loadDay(ctx, svc, date)
	if err != nil {
		return nil, err
	}
	slots := availability.ComputeAvailableSlots(hours, svc, date, bookings)
	if hours == nil {
		metrics.IncSlotComputation("closed")
	} else {
		metrics.IncSlotComputation("computed")
	}

	if s.cacheSlots {
		if err := s.cache.SetSlots(ctx, svc.BusinessID, svc.ID, date, slots); err != nil {
			s.logger.Warn().Err(err).Int64("service_id", svc.ID).Msg("slot cache write failed")
		}
	}
	return slots, nil
}

// GetSlotGrid returns the full grid with occupancy. Never cached.
func (s *BookingService) GetSlotGrid(ctx context.Context, serviceID int64, date time.Time) ([]availability.Slot, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	date = models.DateOnly(date)
	hours, bookings, err := s.loadDay(ctx, svc, date)
	if err != nil {
		return nil, err
	}
	grid := availability.BuildGrid(hours, svc, date, bookings)
	if grid == nil {
		grid = []availability.Slot{}
	}
	return grid, nil
}

func (s *BookingService) ResolveHours(ctx context.Context, businessID int64, date time.Time) (*models.OperatingHours, error) {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, businessID, date)
}

// CheckSlot reports whether start is a free grid slot of the service, reading fresh data.
func (s *BookingService) CheckSlot(ctx context.Context, serviceID int64, start time.Time) (bool, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return false, err
	}
	date := models.DateOnly(start)
	hours, bookings, err := s.loadDay(ctx, svc, date)
	if err != nil {
		return false, err
	}
	return availability.IsAvailable(hours, svc, date, bookings, models.TimeOfDayOf(start)), nil
}

// CreateBooking validates the requested start against fresh availability and
// stores the booking. The store repeats the capacity check inside its transaction.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil || booking.ServiceID <= 0 || strings.TrimSpace(booking.CustomerName) == "" {
		metrics.IncBookingAttempt("invalid")
		return ErrInvalidBooking
	}

	if err := s.checkRateLimit(ctx, booking); err != nil {
		return err
	}

	svc, err := s.repo.GetService(ctx, booking.ServiceID)
	if err != nil {
		metrics.IncBookingAttempt(outcomeOf(err))
		return err
	}

	if err := s.validateStart(booking.ScheduledStart); err != nil {
		metrics.IncBookingAttempt("invalid")
		return err
	}

	date := models.DateOnly(booking.ScheduledStart)
	hours, bookings, err := s.loadDay(ctx, svc, date)
	if err != nil {
		metrics.IncBookingAttempt("error")
		return err
	}
	if hours == nil {
		metrics.IncBookingAttempt("closed_day")
		return database.ErrClosedDay
	}

	slots := availability.ComputeAvailableSlots(hours, svc, date, bookings)
	if !slices.Contains(slots, booking.SlotTime().String()) {
		metrics.IncBookingAttempt("slot_unavailable")
		return database.ErrSlotUnavailable
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		metrics.IncBookingAttempt(outcomeOf(err))
		return err
	}
	metrics.IncBookingAttempt("created")

	s.invalidate(ctx, booking)
	s.publishEvent(events.EventBookingCreated, booking, "customer")

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("service_id", booking.ServiceID).
		Str("slot", booking.SlotDate()+" "+booking.SlotTime().String()).
		Msg("booking created")
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// ChangeStatus moves a booking to status when version still matches.
func (s *BookingService) ChangeStatus(ctx context.Context, bookingID, version int64, status, changedBy string) (*models.Booking, error) {
	if !models.IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	updated, err := s.repo.UpdateBookingStatusWithLock(ctx, bookingID, version, status)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated)
	s.publishEvent(statusEvent(status), updated, changedBy)

	s.logger.Info().
		Int64("booking_id", updated.ID).
		Str("status", updated.Status).
		Str("changed_by", changedBy).
		Msg("booking status changed")
	return updated, nil
}

// loadDay reads the hours of date and the bookings in the service's occupancy scope.
// Closed days return nil hours and no bookings.
func (s *BookingService) loadDay(ctx context.Context, svc *models.Service, date time.Time) (*models.OperatingHours, []*models.Booking, error) {
	hours, err := s.resolver.Resolve(ctx, svc.BusinessID, date)
	if err != nil {
		return nil, nil, err
	}
	if hours == nil {
		return nil, nil, nil
	}
	bookings, err := s.repo.ListOccupyingBookings(ctx, availability.ScopeFor(svc).Filter(date))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	return hours, bookings, nil
}

func (s *BookingService) checkRateLimit(ctx context.Context, booking *models.Booking) error {
	if s.cache == nil {
		return nil
	}
	customer := booking.CustomerEmail
	if customer == "" {
		customer = booking.CustomerName
	}
	key := "booking:" + strings.ToLower(strings.TrimSpace(customer))
	window := time.Duration(s.cfg.RateLimitWindow) * time.Second

	allowed, err := s.cache.CheckRateLimit(ctx, key, s.cfg.RateLimitAttempts, window)
	if err != nil {
		// Без кэша не блокируем запись
		s.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
		return nil
	}
	if !allowed {
		metrics.IncBookingAttempt("rate_limited")
		return ErrRateLimited
	}
	return nil
}

// validateStart compares on the business wall clock: start carries the wall
// time in its own location, now is re-expressed with the same wall time.
func (s *BookingService) validateStart(start time.Time) error {
	if start.IsZero() {
		return ErrInvalidBooking
	}
	n := s.now()
	now := time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), 0, 0, start.Location())

	if start.Before(now) {
		return ErrPastDate
	}
	maxDate := models.DateOnly(now).AddDate(0, 0, s.cfg.MaxAdvanceDays)
	if models.DateOnly(start).After(maxDate) {
		return ErrDateTooFar
	}
	return nil
}

func (s *BookingService) invalidate(ctx context.Context, booking *models.Booking) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDay(ctx, booking.BusinessID, models.DateOnly(booking.ScheduledStart)); err != nil {
		s.logger.Warn().Err(err).Int64("business_id", booking.BusinessID).Msg("slot cache invalidation failed")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		ServiceID:      booking.ServiceID,
		BusinessID:     booking.BusinessID,
		Status:         booking.Status,
		ScheduledStart: booking.ScheduledStart,
		CustomerName:   booking.CustomerName,
		Version:        booking.Version,
		ChangedBy:      changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func statusEvent(status string) string {
	switch status {
	case models.StatusConfirmed:
		return events.EventBookingConfirmed
	case models.StatusCanceled:
		return events.EventBookingCanceled
	case models.StatusCompleted:
		return events.EventBookingCompleted
	default:
		return events.EventBookingReopened
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return "not_found"
	case errors.Is(err, database.ErrClosedDay):
		return "closed_day"
	case errors.Is(err, database.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, database.ErrCapacityExceeded):
		return "capacity_exceeded"
	default:
		return "error"
	}
}
