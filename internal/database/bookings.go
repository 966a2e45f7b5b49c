package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/models"
)

const bookingColumns = `b.id, b.service_id, b.business_id, b.customer_name, b.customer_email,
        b.slot_date, b.slot_time, b.status, b.notes, b.created_at, b.updated_at, b.version,
        s.competes_with_others`

// bookingsFrom joins the service so every booking carries its pool flag.
const bookingsFrom = ` FROM bookings b JOIN services s ON s.id = b.service_id`

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db, id)
}

func getBooking(ctx context.Context, q querier, id int64) (*models.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+bookingsFrom+` WHERE b.id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

// ListOccupyingBookings returns the pending and confirmed bookings of exactly
// filter.Date. With filter.BusinessID only bookings of competing services of
// that business are returned.
func (db *DB) ListOccupyingBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	return listOccupyingBookings(ctx, db, filter)
}

func listOccupyingBookings(ctx context.Context, q querier, filter models.BookingFilter) ([]*models.Booking, error) {
	if (filter.ServiceID == 0) == (filter.BusinessID == 0) {
		return nil, fmt.Errorf("booking filter needs exactly one of service or business")
	}

	args := []any{filter.Date.Format(models.DateLayout)}
	for _, s := range models.OccupyingStatuses {
		args = append(args, s)
	}

	var query string
	if filter.ServiceID != 0 {
		query = `SELECT ` + bookingColumns + bookingsFrom + `
            WHERE b.slot_date = ? AND b.status IN (` + placeholders(len(models.OccupyingStatuses)) + `)
            AND b.service_id = ?
            ORDER BY b.slot_time, b.id`
		args = append(args, filter.ServiceID)
	} else {
		query = `SELECT ` + bookingColumns + bookingsFrom + `
            WHERE b.slot_date = ? AND b.status IN (` + placeholders(len(models.OccupyingStatuses)) + `)
            AND b.business_id = ? AND s.competes_with_others = 1
            ORDER BY b.slot_time, b.id`
		args = append(args, filter.BusinessID)
	}

	return queryBookings(ctx, q, query, args...)
}

// ListBookingsForDay returns every booking of a business on date regardless of status.
func (db *DB) ListBookingsForDay(ctx context.Context, businessID int64, date time.Time) ([]*models.Booking, error) {
	return queryBookings(ctx, db, `SELECT `+bookingColumns+bookingsFrom+`
        WHERE b.business_id = ? AND b.slot_date = ?
        ORDER BY b.slot_time, b.service_id, b.id`, businessID, date.Format(models.DateLayout))
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// CreateBookingWithLock re-checks the slot grid and capacity inside one
// transaction and inserts the booking only if the seat is still free.
// The service and its business are taken from booking.ServiceID.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	svc, err := getService(ctx, tx, booking.ServiceID)
	if err != nil {
		return err
	}
	booking.BusinessID = svc.BusinessID
	booking.CompetesWithOthers = svc.CompetesWithOthers

	if err := checkSlot(ctx, tx, svc, booking.ScheduledStart); err != nil {
		return err
	}

	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	now := time.Now()
	result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
            service_id, business_id, customer_name, customer_email, slot_date, slot_time,
            status, notes, version, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ServiceID,
		booking.BusinessID,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.SlotDate(),
		booking.SlotTime(),
		booking.Status,
		booking.Notes,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingStatusWithLock moves a booking to status if fromVersion is still
// current and the transition is allowed. Moving back into an occupying status
// re-checks slot capacity in the same transaction.
func (db *DB) UpdateBookingStatusWithLock(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := getBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if booking.Version != fromVersion {
		return nil, ErrConcurrentModification
	}
	if !models.CanTransition(booking.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", booking.Status, status, ErrInvalidTransition)
	}

	if !models.OccupiesCapacity(booking.Status) && models.OccupiesCapacity(status) {
		svc, err := getService(ctx, tx, booking.ServiceID)
		if err != nil {
			return nil, err
		}
		if err := checkSlot(ctx, tx, svc, booking.ScheduledStart); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?`, status, now, id, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrConcurrentModification
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	booking.Status = status
	booking.Version = fromVersion + 1
	booking.UpdatedAt = now
	return booking, nil
}

// checkSlot rebuilds the grid of svc on the date of start from data read through q.
func checkSlot(ctx context.Context, q querier, svc *models.Service, start time.Time) error {
	hours, err := getOperatingHours(ctx, q, svc.BusinessID, models.WeekdayOf(start))
	if err != nil {
		return err
	}
	if hours == nil {
		return ErrClosedDay
	}

	bookings, err := listOccupyingBookings(ctx, q, availability.ScopeFor(svc).Filter(start))
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}

	grid := availability.BuildGrid(hours, svc, start, bookings)
	slot, ok := availability.Lookup(grid, models.TimeOfDayOf(start))
	if !ok {
		return ErrSlotUnavailable
	}
	if !slot.Available {
		return ErrCapacityExceeded
	}
	return nil
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var (
		b       models.Booking
		dateStr string
		slot    models.TimeOfDay
	)
	err := r.Scan(&b.ID, &b.ServiceID, &b.BusinessID, &b.CustomerName, &b.CustomerEmail,
		&dateStr, &slot, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
		&b.CompetesWithOthers)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	b.ScheduledStart = slot.On(date)
	return &b, nil
}
