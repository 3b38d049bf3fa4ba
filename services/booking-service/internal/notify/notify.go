// Package notify turns booking events into notification requests for the notification service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
)

// EventType is the topic notification requests are published on.
const EventType = "booking.notification.requested.v1"

type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindStatusChanged    Kind = "status_changed"
)

type Notification struct {
	RecipientID    string       `json:"recipient_id"`
	RecipientEmail string       `json:"recipient_email,omitempty"`
	Kind           Kind         `json:"kind"`
	Summary        string       `json:"summary"`
	AppointmentID  string       `json:"appointment_id"`
	ServiceName    string       `json:"service_name"`
	StartAt        time.Time    `json:"start_at"`
	Status         model.Status `json:"status"`
}

// Dispatcher hands a notification to the delivery side. Callers log failures and carry on.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Summary renders the one-line text shown in the feed and used as the email body.
func Summary(serviceName string, startAt time.Time, status model.Status) string {
	if serviceName == "" {
		serviceName = "Appointment"
	}
	return fmt.Sprintf("%s on %s at %s is %s", serviceName, startAt.Format("Mon, 02 Jan 2006"), startAt.Format("15:04"), status)
}

// OutboxDispatcher stores the request in outbox_events for the relay to publish.
type OutboxDispatcher struct {
	q    db.Querier
	repo *outbox.Repository
}

func NewOutboxDispatcher(q db.Querier, repo *outbox.Repository) *OutboxDispatcher {
	return &OutboxDispatcher{q: q, repo: repo}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.repo.Insert(ctx, d.q, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   n.AppointmentID,
		EventType:     EventType,
		Payload:       payload,
	})
}

// LogDispatcher only logs; used when the service runs without Postgres.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.logger.Info("notification",
		"recipient_id", n.RecipientID,
		"kind", n.Kind,
		"appointment_id", n.AppointmentID,
		"summary", n.Summary,
	)
	return nil
}
