package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memorySlotsEntry struct {
	services  map[int64][]string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemorySlotCache is the in-process SlotCache used without Redis and as failover target.
type MemorySlotCache struct {
	mu         sync.Mutex
	days       map[string]*memorySlotsEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

func NewMemorySlotCache(ttl time.Duration) *MemorySlotCache {
	return &MemorySlotCache{
		days:       make(map[string]*memorySlotsEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemorySlotCache) GetSlots(_ context.Context, businessID, serviceID int64, date time.Time) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotsKey(businessID, date)
	entry, ok := r.days[key]
	if !ok {
		return nil, false, nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.days, key)
		return nil, false, nil
	}
	slots, ok := entry.services[serviceID]
	if !ok {
		return nil, false, nil
	}
	return append([]string{}, slots...), true, nil
}

func (r *MemorySlotCache) SetSlots(_ context.Context, businessID, serviceID int64, date time.Time, slots []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotsKey(businessID, date)
	entry, ok := r.days[key]
	if !ok || r.now().After(entry.expiresAt) {
		entry = &memorySlotsEntry{services: make(map[int64][]string)}
		r.days[key] = entry
	}
	entry.services[serviceID] = append([]string{}, slots...)
	entry.expiresAt = r.now().Add(r.ttl)
	return nil
}

func (r *MemorySlotCache) InvalidateDay(_ context.Context, businessID int64, date time.Time) error {
	r.mu.Lock()
	delete(r.days, slotsKey(businessID, date))
	r.mu.Unlock()
	return nil
}

func (r *MemorySlotCache) InvalidateBusiness(_ context.Context, businessID int64) error {
	prefix := slotsPrefix(businessID)
	r.mu.Lock()
	for key := range r.days {
		if strings.HasPrefix(key, prefix) {
			delete(r.days, key)
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *MemorySlotCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
