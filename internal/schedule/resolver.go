package schedule

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"
)

// HoursSource loads the operating hours record of a business for one weekday.
// A missing record is reported as (nil, nil).
type HoursSource interface {
	GetOperatingHours(ctx context.Context, businessID int64, weekday int) (*models.OperatingHours, error)
}

// Resolver maps a calendar date to the operating hours that apply on it.
type Resolver struct {
	source HoursSource
}

func NewResolver(source HoursSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the hours of businessID on date, or nil when the business is closed.
// Only the calendar date of date is used.
func (r *Resolver) Resolve(ctx context.Context, businessID int64, date time.Time) (*models.OperatingHours, error) {
	weekday := models.WeekdayOf(date)

	hours, err := r.source.GetOperatingHours(ctx, businessID, weekday)
	if err != nil {
		return nil, fmt.Errorf("failed to load operating hours for %s: %w", models.WeekdayName(weekday), err)
	}
	return hours, nil
}

// Week returns the hours of all seven weekdays, Monday first. Closed days are nil.
func (r *Resolver) Week(ctx context.Context, businessID int64) ([7]*models.OperatingHours, error) {
	var week [7]*models.OperatingHours
	for wd := 0; wd < 7; wd++ {
		hours, err := r.source.GetOperatingHours(ctx, businessID, wd)
		if err != nil {
			return week, fmt.Errorf("failed to load operating hours for %s: %w", models.WeekdayName(wd), err)
		}
		week[wd] = hours
	}
	return week, nil
}
