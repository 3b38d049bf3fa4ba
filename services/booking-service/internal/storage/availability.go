package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

func (r *Repository) UpsertWindow(ctx context.Context, w model.AvailabilityWindow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows (provider_id, weekday, start_time, end_time, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_id, weekday) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = EXCLUDED.updated_at
	`, w.ProviderID, int(w.Weekday), pgTime(w.Start), pgTime(w.End), w.UpdatedAt)
	return err
}

func (r *Repository) DeleteWindow(ctx context.Context, providerID string, weekday time.Weekday) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM availability_windows WHERE provider_id = $1 AND weekday = $2
	`, providerID, int(weekday))
	return err
}

func (r *Repository) GetWindow(ctx context.Context, providerID string, weekday time.Weekday) (model.AvailabilityWindow, bool, error) {
	w, err := scanWindow(r.pool.QueryRow(ctx, `
		SELECT provider_id, weekday, start_time, end_time, updated_at
		FROM availability_windows
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, int(weekday)))
	if db.IsNoRows(err) {
		return model.AvailabilityWindow{}, false, nil
	}
	if err != nil {
		return model.AvailabilityWindow{}, false, err
	}
	return w, true, nil
}

func (r *Repository) ListWindows(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, weekday, start_time, end_time, updated_at
		FROM availability_windows
		WHERE provider_id = $1
		ORDER BY weekday
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make([]model.AvailabilityWindow, 0, 7)
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	var weekday int
	var start, end pgtype.Time
	if err := row.Scan(&w.ProviderID, &weekday, &start, &end, &w.UpdatedAt); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w.Weekday = time.Weekday(weekday)
	w.Start = fromPgTime(start)
	w.End = fromPgTime(end)
	return w, nil
}

func pgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}
}

func fromPgTime(t pgtype.Time) model.TimeOfDay {
	return model.TimeOfDay(t.Microseconds / 1_000_000)
}
