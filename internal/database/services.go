package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"
)

const serviceColumns = `id, business_id, name, description, duration_minutes, price_cents, competes_with_others, created_at, updated_at`

func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	if s == nil {
		return fmt.Errorf("service is nil")
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `INSERT INTO services (business_id, name, description, duration_minutes, price_cents, competes_with_others, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.BusinessID, s.Name, s.Description, s.DurationMinutes, s.PriceCents, s.CompetesWithOthers, now, now)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return getService(ctx, db, id)
}

func getService(ctx context.Context, q querier, id int64) (*models.Service, error) {
	row := q.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	s, err := scanService(row)
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	return s, nil
}

func (db *DB) ListServicesByBusiness(ctx context.Context, businessID int64) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = ? ORDER BY name, id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (db *DB) UpdateService(ctx context.Context, s *models.Service) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `UPDATE services SET name = ?, description = ?, duration_minutes = ?,
        price_cents = ?, competes_with_others = ?, updated_at = ? WHERE id = ?`,
		s.Name, s.Description, s.DurationMinutes, s.PriceCents, s.CompetesWithOthers, now, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("service %d: %w", s.ID, ErrNotFound)
	}
	s.UpdatedAt = now
	return nil
}

func scanService(r rowScanner) (*models.Service, error) {
	var s models.Service
	err := r.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.DurationMinutes,
		&s.PriceCents, &s.CompetesWithOthers, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
