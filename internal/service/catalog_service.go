package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/schedule"

	"github.com/rs/zerolog"
)

// CatalogService administers businesses, their weekly hours and services.
type CatalogService struct {
	repo      domain.Repository
	cache     domain.SlotCache
	resolver  *schedule.Resolver
	durations []int
	logger    *zerolog.Logger
}

// cache may be nil. Changes to hours and services drop the cached slots of the business.
func NewCatalogService(repo domain.Repository, cache domain.SlotCache, cfg config.BookingConfig, logger *zerolog.Logger) *CatalogService {
	durations := cfg.AllowedDurations
	if len(durations) == 0 {
		durations = models.AllowedDurations
	}
	return &CatalogService{
		repo:      repo,
		cache:     cache,
		resolver:  schedule.NewResolver(repo),
		durations: append([]int(nil), durations...),
		logger:    logger,
	}
}

func (s *CatalogService) CreateBusiness(ctx context.Context, b *models.Business) error {
	if b == nil || strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: business name is required", ErrInvalidCatalog)
	}
	b.Name = strings.TrimSpace(b.Name)
	if err := s.repo.CreateBusiness(ctx, b); err != nil {
		return err
	}
	s.logger.Info().Int64("business_id", b.ID).Str("name", b.Name).Msg("business created")
	return nil
}

func (s *CatalogService) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	return s.repo.GetBusiness(ctx, id)
}

func (s *CatalogService) ListBusinesses(ctx context.Context) ([]*models.Business, error) {
	return s.repo.ListBusinesses(ctx)
}

// SetOperatingHours replaces the hours of one weekday.
func (s *CatalogService) SetOperatingHours(ctx context.Context, h *models.OperatingHours) error {
	if err := validateHours(h); err != nil {
		return err
	}
	if _, err := s.repo.GetBusiness(ctx, h.BusinessID); err != nil {
		return err
	}
	if err := s.repo.UpsertOperatingHours(ctx, h); err != nil {
		return err
	}
	s.invalidate(ctx, h.BusinessID)
	s.logger.Info().
		Int64("business_id", h.BusinessID).
		Str("weekday", models.WeekdayName(h.Weekday)).
		Str("open", h.OpenTime.String()).
		Str("close", h.CloseTime.String()).
		Int("capacity", h.MaxConcurrentPerSlot).
		Msg("operating hours set")
	return nil
}

// CloseWeekday removes the hours record, so the weekday resolves as closed.
func (s *CatalogService) CloseWeekday(ctx context.Context, businessID int64, weekday int) error {
	if weekday < 0 || weekday > 6 {
		return fmt.Errorf("%w: weekday must be 0..6", ErrInvalidCatalog)
	}
	if err := s.repo.DeleteOperatingHours(ctx, businessID, weekday); err != nil {
		return err
	}
	s.invalidate(ctx, businessID)
	return nil
}

func (s *CatalogService) GetWeek(ctx context.Context, businessID int64) ([7]*models.OperatingHours, error) {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return [7]*models.OperatingHours{}, err
	}
	return s.resolver.Week(ctx, businessID)
}

func (s *CatalogService) CreateService(ctx context.Context, svc *models.Service) error {
	if err := s.validateService(svc); err != nil {
		return err
	}
	if _, err := s.repo.GetBusiness(ctx, svc.BusinessID); err != nil {
		return err
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return err
	}
	s.logger.Info().
		Int64("service_id", svc.ID).
		Int64("business_id", svc.BusinessID).
		Bool("competes", svc.CompetesWithOthers).
		Msg("service created")
	return nil
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

func (s *CatalogService) ListServices(ctx context.Context, businessID int64) ([]*models.Service, error) {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	return s.repo.ListServicesByBusiness(ctx, businessID)
}

// UpdateService keeps the owning business of the stored record.
func (s *CatalogService) UpdateService(ctx context.Context, svc *models.Service) error {
	current, err := s.repo.GetService(ctx, svc.ID)
	if err != nil {
		return err
	}
	svc.BusinessID = current.BusinessID
	if err := s.validateService(svc); err != nil {
		return err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return err
	}
	// Смена длительности или пула меняет сетку соседних услуг тоже
	s.invalidate(ctx, svc.BusinessID)
	return nil
}

// invalidate drops cached slot lists of the business. A cache failure is only
// logged: the lists expire with their TTL anyway.
func (s *CatalogService) invalidate(ctx context.Context, businessID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBusiness(ctx, businessID); err != nil {
		s.logger.Warn().Err(err).Int64("business_id", businessID).Msg("failed to invalidate slot cache")
	}
}

// ImportCatalog creates every business of the catalog with its hours and services.
// It returns the number of businesses created before the first failure.
func (s *CatalogService) ImportCatalog(ctx context.Context, catalog *models.Catalog) (int, error) {
	if catalog == nil {
		return 0, nil
	}
	created := 0
	for i, cb := range catalog.Businesses {
		if err := s.importBusiness(ctx, cb); err != nil {
			return created, fmt.Errorf("business #%d %q: %w", i+1, cb.Name, err)
		}
		created++
	}
	return created, nil
}

func (s *CatalogService) importBusiness(ctx context.Context, cb models.CatalogBusiness) error {
	b := &models.Business{
		Name:    cb.Name,
		Address: cb.Address,
		City:    cb.City,
		State:   cb.State,
		Zipcode: cb.Zipcode,
	}
	if err := s.CreateBusiness(ctx, b); err != nil {
		return err
	}

	for _, ch := range cb.Hours {
		open, err := models.ParseTimeOfDay(ch.Open)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		closeAt, err := models.ParseTimeOfDay(ch.Close)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		h := &models.OperatingHours{
			BusinessID:           b.ID,
			Weekday:              ch.Weekday,
			OpenTime:             open,
			CloseTime:            closeAt,
			MaxConcurrentPerSlot: ch.MaxPerSlot,
		}
		if err := s.SetOperatingHours(ctx, h); err != nil {
			return err
		}
	}

	for _, cs := range cb.Services {
		competes := true
		if cs.CompetesWithOthers != nil {
			competes = *cs.CompetesWithOthers
		}
		duration := cs.DurationMinutes
		if duration == 0 {
			duration = models.DefaultServiceDuration
		}
		svc := &models.Service{
			BusinessID:         b.ID,
			Name:               cs.Name,
			Description:        cs.Description,
			DurationMinutes:    duration,
			PriceCents:         cs.PriceCents,
			CompetesWithOthers: competes,
		}
		if err := s.CreateService(ctx, svc); err != nil {
			return err
		}
	}
	return nil
}

func validateHours(h *models.OperatingHours) error {
	if h == nil {
		return fmt.Errorf("%w: hours are required", ErrInvalidCatalog)
	}
	if h.Weekday < 0 || h.Weekday > 6 {
		return fmt.Errorf("%w: weekday must be 0..6", ErrInvalidCatalog)
	}
	if h.OpenTime < 0 || h.CloseTime > models.NewTimeOfDay(24, 0) {
		return fmt.Errorf("%w: hours must lie within the day", ErrInvalidCatalog)
	}
	if h.OpenTime >= h.CloseTime {
		return fmt.Errorf("%w: open time must be before close time", ErrInvalidCatalog)
	}
	if h.MaxConcurrentPerSlot <= 0 {
		return fmt.Errorf("%w: max_concurrent_per_slot must be positive", ErrInvalidCatalog)
	}
	return nil
}

func (s *CatalogService) validateService(svc *models.Service) error {
	if svc == nil || strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidCatalog)
	}
	if !slices.Contains(s.durations, svc.DurationMinutes) {
		return fmt.Errorf("%w: duration %d is not one of %v", ErrInvalidCatalog, svc.DurationMinutes, s.durations)
	}
	if svc.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidCatalog)
	}
	return nil
}
