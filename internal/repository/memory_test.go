package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlotCache(t *testing.T) {
	repo := NewMemorySlotCache(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		slots := []string{"09:00"}
		require.NoError(t, repo.SetSlots(ctx, 1, 10, cacheDay, slots))
		slots[0] = "mutated"

		got, ok, err := repo.GetSlots(ctx, 1, 10, cacheDay)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"09:00"}, got)

		_, ok, _ = repo.GetSlots(ctx, 1, 11, cacheDay)
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, ok, err := repo.GetSlots(ctx, 1, 10, cacheDay)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidateDay", func(t *testing.T) {
		require.NoError(t, repo.SetSlots(ctx, 1, 10, cacheDay, []string{"09:00"}))
		require.NoError(t, repo.InvalidateDay(ctx, 1, cacheDay))
		_, ok, _ := repo.GetSlots(ctx, 1, 10, cacheDay)
		assert.False(t, ok)
	})

	t.Run("InvalidateBusiness", func(t *testing.T) {
		require.NoError(t, repo.SetSlots(ctx, 1, 10, cacheDay, []string{"09:00"}))
		require.NoError(t, repo.SetSlots(ctx, 1, 10, cacheDay.AddDate(0, 0, 1), []string{"09:00"}))
		require.NoError(t, repo.SetSlots(ctx, 11, 10, cacheDay, []string{"09:00"}))

		require.NoError(t, repo.InvalidateBusiness(ctx, 1))

		_, ok, _ := repo.GetSlots(ctx, 1, 10, cacheDay)
		assert.False(t, ok)
		_, ok, _ = repo.GetSlots(ctx, 1, 10, cacheDay.AddDate(0, 0, 1))
		assert.False(t, ok)
		_, ok, _ = repo.GetSlots(ctx, 11, 10, cacheDay)
		assert.True(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := repo.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(2 * time.Second)
		allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
	})
}
