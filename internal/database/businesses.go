package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/models"
)

func (db *DB) CreateBusiness(ctx context.Context, b *models.Business) error {
	if b == nil {
		return fmt.Errorf("business is nil")
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO businesses (name, address, city, state, zipcode, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Address, b.City, b.State, b.Zipcode, now, now)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (db *DB) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, address, city, state, zipcode, created_at, updated_at
        FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if err != nil {
		return nil, notFound(err, "business", id)
	}
	return b, nil
}

func (db *DB) ListBusinesses(ctx context.Context) ([]*models.Business, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, address, city, state, zipcode, created_at, updated_at
        FROM businesses ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	var businesses []*models.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

// UpsertOperatingHours replaces the record of (business, weekday).
func (db *DB) UpsertOperatingHours(ctx context.Context, h *models.OperatingHours) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `INSERT INTO operating_hours (business_id, weekday, open_time, close_time, max_concurrent_per_slot, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(business_id, weekday) DO UPDATE SET
            open_time = excluded.open_time,
            close_time = excluded.close_time,
            max_concurrent_per_slot = excluded.max_concurrent_per_slot,
            updated_at = excluded.updated_at`,
		h.BusinessID, h.Weekday, h.OpenTime, h.CloseTime, h.MaxConcurrentPerSlot, now)
	if err != nil {
		return fmt.Errorf("failed to upsert operating hours: %w", err)
	}

	err = db.QueryRowContext(ctx, `SELECT id FROM operating_hours WHERE business_id = ? AND weekday = ?`,
		h.BusinessID, h.Weekday).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to read operating hours id: %w", err)
	}
	h.UpdatedAt = now
	return nil
}

// GetOperatingHours returns (nil, nil) when the business has no record for weekday.
func (db *DB) GetOperatingHours(ctx context.Context, businessID int64, weekday int) (*models.OperatingHours, error) {
	return getOperatingHours(ctx, db, businessID, weekday)
}

func getOperatingHours(ctx context.Context, q querier, businessID int64, weekday int) (*models.OperatingHours, error) {
	row := q.QueryRowContext(ctx, `SELECT id, business_id, weekday, open_time, close_time, max_concurrent_per_slot, updated_at
        FROM operating_hours WHERE business_id = ? AND weekday = ?`, businessID, weekday)
	h, err := scanHours(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operating hours: %w", err)
	}
	return h, nil
}

func (db *DB) ListOperatingHours(ctx context.Context, businessID int64) ([]*models.OperatingHours, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, business_id, weekday, open_time, close_time, max_concurrent_per_slot, updated_at
        FROM operating_hours WHERE business_id = ? ORDER BY weekday`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operating hours: %w", err)
	}
	defer rows.Close()

	var list []*models.OperatingHours
	for rows.Next() {
		h, err := scanHours(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operating hours: %w", err)
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// DeleteOperatingHours closes the business on weekday.
func (db *DB) DeleteOperatingHours(ctx context.Context, businessID int64, weekday int) error {
	result, err := db.ExecContext(ctx, `DELETE FROM operating_hours WHERE business_id = ? AND weekday = ?`, businessID, weekday)
	if err != nil {
		return fmt.Errorf("failed to delete operating hours: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operating hours for weekday %d: %w", weekday, ErrNotFound)
	}
	return nil
}

func scanBusiness(r rowScanner) (*models.Business, error) {
	var b models.Business
	if err := r.Scan(&b.ID, &b.Name, &b.Address, &b.City, &b.State, &b.Zipcode, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanHours(r rowScanner) (*models.OperatingHours, error) {
	var h models.OperatingHours
	err := r.Scan(&h.ID, &h.BusinessID, &h.Weekday, &h.OpenTime, &h.CloseTime, &h.MaxConcurrentPerSlot, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
