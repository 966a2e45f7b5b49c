package repository

import (
	"context"
	"sync/atomic"
	"time"

	"slotbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoverAfter = time.Minute

// FailoverSlotCache serves from primary (Redis) and switches to fallback
// (memory) on the first error. Primary is tried again once a minute.
type FailoverSlotCache struct {
	primary   domain.SlotCache
	fallback  domain.SlotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSlotCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > recoverAfter {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (r *FailoverSlotCache) markDown(err error, op string) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary slot cache failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSlotCache) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary slot cache recovered")
	}
}

func (r *FailoverSlotCache) GetSlots(ctx context.Context, businessID, serviceID int64, date time.Time) ([]string, bool, error) {
	if r.usePrimary() {
		slots, ok, err := r.primary.GetSlots(ctx, businessID, serviceID, date)
		if err == nil {
			r.markUp()
			return slots, ok, nil
		}
		r.markDown(err, "get_slots")
	}
	return r.fallback.GetSlots(ctx, businessID, serviceID, date)
}

func (r *FailoverSlotCache) SetSlots(ctx context.Context, businessID, serviceID int64, date time.Time, slots []string) error {
	if r.usePrimary() {
		err := r.primary.SetSlots(ctx, businessID, serviceID, date, slots)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err, "set_slots")
	}
	return r.fallback.SetSlots(ctx, businessID, serviceID, date, slots)
}

// InvalidateDay always clears the fallback as well so no stale list survives a recovery.
func (r *FailoverSlotCache) InvalidateDay(ctx context.Context, businessID int64, date time.Time) error {
	fallbackErr := r.fallback.InvalidateDay(ctx, businessID, date)
	if r.usePrimary() {
		err := r.primary.InvalidateDay(ctx, businessID, date)
		if err == nil {
			r.markUp()
			return fallbackErr
		}
		r.markDown(err, "invalidate_day")
	}
	return fallbackErr
}

func (r *FailoverSlotCache) InvalidateBusiness(ctx context.Context, businessID int64) error {
	fallbackErr := r.fallback.InvalidateBusiness(ctx, businessID)
	if r.usePrimary() {
		err := r.primary.InvalidateBusiness(ctx, businessID)
		if err == nil {
			r.markUp()
			return fallbackErr
		}
		r.markDown(err, "invalidate_business")
	}
	return fallbackErr
}

func (r *FailoverSlotCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err, "rate_limit")
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
