package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const appointmentColumns = `id::text, provider_id, client_id, service_id::text, client_email, start_at, status, created_at, updated_at`

// InsertAppointment relies on appointments_active_slot_uidx to reject a second active
// booking at the same provider and start. It holds a key-share lock on the service row, so a
// concurrent DeleteService either sees the new appointment or removes the service first.
func (r *Repository) InsertAppointment(ctx context.Context, appt model.Appointment) error {
	if !validID(appt.ServiceID) {
		return fmt.Errorf("service %s: %w", appt.ServiceID, apperr.ErrNotFound)
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, provider_id, client_id, service_id, client_email, start_at, status, created_at, updated_at)
		SELECT $1::uuid, $2::text, $3::text, s.id, $5::text, $6::timestamp, $7::text, $8::timestamptz, $9::timestamptz
		FROM services s
		WHERE s.id = $4
		FOR KEY SHARE OF s
	`, appt.ID, appt.ProviderID, appt.ClientID, appt.ServiceID, appt.ClientEmail, appt.StartAt, string(appt.Status), appt.CreatedAt, appt.UpdatedAt)
	if db.HasCode(err, db.CodeUniqueViolation) {
		return apperr.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %s: %w", appt.ServiceID, apperr.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, r.pool, id)
}

func getAppointment(ctx context.Context, q db.Querier, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	appt, err := scanAppointment(q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return appt, err
}

// TransitionAppointment is a compare-and-set on status.
func (r *Repository) TransitionAppointment(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, string(from), string(to), at))
	if db.IsNoRows(err) {
		return model.Appointment{}, r.missedTransition(ctx, id)
	}
	return appt, err
}

// ConfirmAppointment serializes confirms per provider with a transaction-scoped advisory lock,
// then counts and flips the row in the same transaction.
func (r *Repository) ConfirmAppointment(ctx context.Context, id string, maxConfirmed int, at time.Time) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	var out model.Appointment
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var providerID string
		err := tx.QueryRow(ctx, `SELECT provider_id FROM appointments WHERE id = $1`, id).Scan(&providerID)
		if db.IsNoRows(err) {
			return fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('confirm:' || $1))`, providerID); err != nil {
			return err
		}

		var confirmed int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM appointments WHERE provider_id = $1 AND status = 'confirmed'
		`, providerID).Scan(&confirmed); err != nil {
			return err
		}
		if confirmed >= maxConfirmed {
			return fmt.Errorf("provider %s holds %d confirmed: %w", providerID, confirmed, apperr.ErrCapacity)
		}

		appt, err := scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'confirmed', updated_at = $2
			WHERE id = $1 AND status = 'pending'
			RETURNING `+appointmentColumns,
			id, at))
		if db.IsNoRows(err) {
			return fmt.Errorf("appointment %s is no longer pending: %w", id, apperr.ErrInvalidTransition)
		}
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

func (r *Repository) missedTransition(ctx context.Context, id string) error {
	current, err := r.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("appointment %s is %s: %w", id, current.Status, apperr.ErrInvalidTransition)
}

func (r *Repository) ListAppointments(ctx context.Context, f ledger.Filter) ([]model.Appointment, error) {
	where, args := filterClause(f)
	order := "created_at DESC, id DESC"
	if f.Schedule {
		order = "start_at ASC, id ASC"
	}
	args = append(args, f.Limit)
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		`+where+`
		ORDER BY `+order+`
		LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := make([]model.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *Repository) CountByStatus(ctx context.Context, f ledger.Filter) (map[model.Status]int, error) {
	where, args := filterClause(f)
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM appointments `+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) ActiveStartsBetween(ctx context.Context, providerID string, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at
		FROM appointments
		WHERE provider_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_at >= $2
			AND start_at < $3
		ORDER BY start_at
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t.UTC())
	}
	return starts, rows.Err()
}

func serviceHasActiveAppointments(ctx context.Context, q db.Querier, serviceID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE service_id = $1 AND status IN ('pending', 'confirmed')
		)
	`, serviceID).Scan(&exists)
	return exists, err
}

// filterClause builds the WHERE clause shared by listing and counting.
func filterClause(f ledger.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ProviderID != "" {
		add("provider_id = $%d", f.ProviderID)
	}
	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if f.ServiceID != "" {
		if validID(f.ServiceID) {
			add("service_id = $%d", f.ServiceID)
		} else {
			conds = append(conds, "FALSE")
		}
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// validID keeps malformed ids away from uuid columns, where Postgres would reject the cast.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.ClientID,
		&appt.ServiceID,
		&appt.ClientEmail,
		&appt.StartAt,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.StartAt = appt.StartAt.UTC()
	return appt, nil
}
