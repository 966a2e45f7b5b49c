package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeOfDay(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		tod, err := ParseTimeOfDay("09:30")
		require.NoError(t, err)
		assert.Equal(t, NewTimeOfDay(9, 30), tod)
		assert.Equal(t, "09:30", tod.String())

		tod, err = ParseTimeOfDay("17:05:00")
		require.NoError(t, err)
		assert.Equal(t, "17:05", tod.String())

		_, err = ParseTimeOfDay("25:00")
		assert.Error(t, err)
		_, err = ParseTimeOfDay("9am")
		assert.Error(t, err)
	})

	t.Run("Add", func(t *testing.T) {
		assert.Equal(t, "10:00", NewTimeOfDay(9, 30).Add(30*time.Minute).String())
		assert.Equal(t, "11:00", NewTimeOfDay(10, 0).Add(time.Hour).String())
	})

	t.Run("OnDate", func(t *testing.T) {
		date := time.Date(2025, 12, 1, 23, 59, 0, 0, time.UTC)
		got := NewTimeOfDay(10, 15).On(date)
		assert.Equal(t, time.Date(2025, 12, 1, 10, 15, 0, 0, time.UTC), got)
	})

	t.Run("Scan", func(t *testing.T) {
		var tod TimeOfDay
		require.NoError(t, tod.Scan("08:45"))
		assert.Equal(t, NewTimeOfDay(8, 45), tod)
		require.NoError(t, tod.Scan([]byte("12:00")))
		assert.Equal(t, NewTimeOfDay(12, 0), tod)
		assert.Error(t, tod.Scan(42))

		v, err := NewTimeOfDay(7, 5).Value()
		require.NoError(t, err)
		assert.Equal(t, "07:05", v)
	})

	t.Run("Text", func(t *testing.T) {
		var tod TimeOfDay
		require.NoError(t, tod.UnmarshalText([]byte("18:00")))
		raw, err := tod.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, "18:00", string(raw))
	})
}

func TestWeekdayOf(t *testing.T) {
	// 2025-12-01 is a Monday.
	monday := time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, i, WeekdayOf(monday.AddDate(0, 0, i)))
	}
	assert.Equal(t, "Sunday", WeekdayName(6))
	assert.Equal(t, "weekday(9)", WeekdayName(9))
}

func TestDateHelpers(t *testing.T) {
	ts := time.Date(2025, 12, 1, 18, 42, 7, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), DateOnly(ts))
	assert.True(t, SameDate(ts, DateOnly(ts)))
	assert.False(t, SameDate(ts, ts.AddDate(0, 0, 1)))
}

func TestBookingStatus(t *testing.T) {
	assert.True(t, OccupiesCapacity(StatusPending))
	assert.True(t, OccupiesCapacity(StatusConfirmed))
	assert.False(t, OccupiesCapacity(StatusCanceled))
	assert.False(t, OccupiesCapacity(StatusCompleted))
	assert.False(t, OccupiesCapacity("unknown"))

	assert.True(t, IsValidStatus(StatusCompleted))
	assert.False(t, IsValidStatus("rejected"))

	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusCanceled, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusPending))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}

func TestBookingSlotKey(t *testing.T) {
	b := Booking{ScheduledStart: time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2025-12-01", b.SlotDate())
	assert.Equal(t, NewTimeOfDay(10, 0), b.SlotTime())
}
