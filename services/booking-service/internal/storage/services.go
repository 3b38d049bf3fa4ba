package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const serviceColumns = `id::text, provider_id, name, duration_minutes, price::float8, created_at, updated_at`

func (r *Repository) InsertService(ctx context.Context, s model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, provider_id, name, duration_minutes, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.ProviderID, s.Name, s.DurationMinutes, s.Price, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *Repository) GetService(ctx context.Context, id string) (model.Service, error) {
	if !validID(id) {
		return model.Service{}, fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	s, err := scanService(r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return model.Service{}, fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	return s, err
}

func (r *Repository) UpdateService(ctx context.Context, s model.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $2, duration_minutes = $3, price = $4, updated_at = $5
		WHERE id = $1
	`, s.ID, s.Name, s.DurationMinutes, s.Price, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %s: %w", s.ID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteService removes a service unless it still has pending or confirmed appointments. The
// row lock orders it against InsertAppointment.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	return r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id::text FROM services WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if db.IsNoRows(err) {
			return fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return err
		}
		busy, err := serviceHasActiveAppointments(ctx, tx, id)
		if err != nil {
			return err
		}
		if busy {
			return fmt.Errorf("delete service %s: %w", id, apperr.ErrServiceInUse)
		}
		_, err = tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
		return err
	})
}

func (r *Repository) ListServices(ctx context.Context, providerID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE provider_id = $1
		ORDER BY name, id
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

// SearchServices uses strpos rather than ILIKE so the query needs no wildcard escaping.
func (r *Repository) SearchServices(ctx context.Context, query string, limit int) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE strpos(lower(name), lower($1)) > 0
		ORDER BY name, id
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	return collectServices(rows)
}

func collectServices(rows pgx.Rows) ([]model.Service, error) {
	defer rows.Close()
	services := make([]model.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &s.Price, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
