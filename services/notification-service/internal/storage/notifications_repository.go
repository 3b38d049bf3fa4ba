package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/libs/db"
)

//go:embed schema.sql
var schemaSQL string

var ErrNotFound = errors.New("notification not found")

// Email delivery outcomes stored with each feed entry.
const (
	EmailSent    = "sent"
	EmailFailed  = "failed"
	EmailSkipped = "skipped"
)

// Notification is one entry of a user's in-app feed.
type Notification struct {
	ID            string     `json:"id"`
	RecipientID   string     `json:"recipient_id"`
	Kind          string     `json:"kind"`
	Summary       string     `json:"summary"`
	AppointmentID string     `json:"appointment_id"`
	Status        string     `json:"status"`
	StartAt       time.Time  `json:"start_at"`
	EmailStatus   string     `json:"email_status"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, kind, summary, appointment_id, status, start_at, email_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, n.ID, n.RecipientID, n.Kind, n.Summary, n.AppointmentID, n.Status, n.StartAt, n.EmailStatus).Scan(&n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// ListForRecipient returns the newest entries first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, kind, summary, appointment_id, status, start_at, email_status, created_at, read_at
		FROM notifications
		WHERE recipient_id = $1 AND ($2::boolean = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Summary, &n.AppointmentID, &n.Status,
			&n.StartAt, &n.EmailStatus, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead is idempotent; entries owned by someone else are reported as not found.
func (r *Repository) MarkRead(ctx context.Context, recipientID, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_id = $2
	`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
