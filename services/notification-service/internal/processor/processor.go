// Package processor turns booking notification requests into feed entries and emails.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// EventType is the topic the booking service publishes requests on.
const EventType = "booking.notification.requested.v1"

// Request is the payload of EventType.
type Request struct {
	RecipientID    string    `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email"`
	Kind           string    `json:"kind"`
	Summary        string    `json:"summary"`
	AppointmentID  string    `json:"appointment_id"`
	ServiceName    string    `json:"service_name"`
	StartAt        time.Time `json:"start_at"`
	Status         string    `json:"status"`
}

var errMissingFields = errors.New("recipient_id, kind, summary and appointment_id are required")

func (r Request) validate() error {
	if strings.TrimSpace(r.RecipientID) == "" || r.Kind == "" || r.Summary == "" || r.AppointmentID == "" {
		return errMissingFields
	}
	return nil
}

type Feed interface {
	Insert(ctx context.Context, n storage.Notification) (storage.Notification, error)
}

type Processor struct {
	feed   Feed
	sender email.Sender
	logger *slog.Logger
}

func New(feed Feed, sender email.Sender, logger *slog.Logger) *Processor {
	return &Processor{feed: feed, sender: sender, logger: logger}
}

// Handle stores the feed entry and emails the recipient when an address is known. Malformed
// payloads are logged and acknowledged; only feed write failures are returned for retry.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	var req Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		p.logger.Error("invalid notification payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if err := req.validate(); err != nil {
		p.logger.Error("invalid notification payload", "err", err, "topic", msg.Topic)
		return nil
	}

	emailStatus := storage.EmailSkipped
	if to := strings.TrimSpace(req.RecipientEmail); to != "" {
		emailStatus = storage.EmailSent
		if err := p.sender.Send(ctx, to, subject(req), req.Summary+"."); err != nil {
			emailStatus = storage.EmailFailed
			p.logger.Error("email send failed", "err", err, "appointment_id", req.AppointmentID)
		}
	}

	n, err := p.feed.Insert(ctx, storage.Notification{
		RecipientID:   req.RecipientID,
		Kind:          req.Kind,
		Summary:       req.Summary,
		AppointmentID: req.AppointmentID,
		Status:        req.Status,
		StartAt:       req.StartAt,
		EmailStatus:   emailStatus,
	})
	if err != nil {
		return err
	}
	p.logger.Info("notification stored",
		"notification_id", n.ID,
		"recipient_id", n.RecipientID,
		"kind", n.Kind,
		"email", emailStatus,
	)
	return nil
}

func subject(req Request) string {
	name := req.ServiceName
	if name == "" {
		name = "Appointment"
	}
	switch req.Kind {
	case "booking_requested":
		return "New booking request: " + name
	case "status_changed":
		return name + " " + req.Status
	default:
		return name + " update"
	}
}
