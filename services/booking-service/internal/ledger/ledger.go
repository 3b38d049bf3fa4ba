// Package ledger is the authoritative record of appointments and their status.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Filter selects appointments. Empty fields match everything.
type Filter struct {
	ProviderID string
	ClientID   string
	ServiceID  string
	Status     model.Status
	// Schedule orders by start ascending; otherwise newest created first.
	Schedule bool
	Limit    int
}

func (f Filter) normalized() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f
}

// Store persists appointments. Implementations must make InsertAppointment atomic against
// another active appointment at the same provider and start (ErrConflict) and against a
// concurrent delete of its service (ErrNotFound), and ConfirmAppointment atomic against the
// provider's confirmed count (ErrCapacity).
type Store interface {
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// TransitionAppointment moves id from -> to only if it is still in from, else ErrInvalidTransition.
	TransitionAppointment(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, error)
	// ConfirmAppointment moves a pending appointment to confirmed while the provider holds
	// fewer than maxConfirmed confirmed appointments.
	ConfirmAppointment(ctx context.Context, id string, maxConfirmed int, at time.Time) (model.Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]model.Appointment, error)
	CountByStatus(ctx context.Context, f Filter) (map[model.Status]int, error)
	ActiveStartsBetween(ctx context.Context, providerID string, from, to time.Time) ([]time.Time, error)
}

type Ledger struct {
	store        Store
	maxConfirmed int
	now          func() time.Time
}

func New(store Store, maxConfirmed int) *Ledger {
	return &Ledger{store: store, maxConfirmed: maxConfirmed, now: time.Now}
}

// Create records a new pending appointment.
func (l *Ledger) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	appt.ProviderID = strings.TrimSpace(appt.ProviderID)
	appt.ClientID = strings.TrimSpace(appt.ClientID)
	appt.ServiceID = strings.TrimSpace(appt.ServiceID)
	switch {
	case appt.ProviderID == "":
		return model.Appointment{}, apperr.Validation("provider_id", "required")
	case appt.ClientID == "":
		return model.Appointment{}, apperr.Validation("client_id", "required")
	case appt.ServiceID == "":
		return model.Appointment{}, apperr.Validation("service_id", "required")
	case appt.StartAt.IsZero():
		return model.Appointment{}, apperr.Validation("start_at", "required")
	}

	now := l.now().UTC()
	appt.ID = uuid.NewString()
	appt.Status = model.StatusPending
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if err := l.store.InsertAppointment(ctx, appt); err != nil {
		return model.Appointment{}, apperr.Transient("insert appointment", err)
	}
	return appt, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := l.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, apperr.Transient("get appointment", err)
	}
	return appt, nil
}

// UpdateStatus applies a lifecycle transition on behalf of actor. The store re-checks the
// current status so a concurrent transition that got there first yields ErrInvalidTransition.
func (l *Ledger) UpdateStatus(ctx context.Context, actor model.Actor, id string, to model.Status) (model.Appointment, error) {
	appt, err := l.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := lifecycle.Check(actor, appt, to); err != nil {
		return model.Appointment{}, err
	}

	at := l.now().UTC()
	var updated model.Appointment
	if to == model.StatusConfirmed {
		updated, err = l.store.ConfirmAppointment(ctx, id, l.maxConfirmed, at)
	} else {
		updated, err = l.store.TransitionAppointment(ctx, id, appt.Status, to, at)
	}
	if err != nil {
		return model.Appointment{}, apperr.Transient(fmt.Sprintf("%s appointment", to), err)
	}
	return updated, nil
}

func (l *Ledger) List(ctx context.Context, f Filter) ([]model.Appointment, error) {
	appts, err := l.store.ListAppointments(ctx, f.normalized())
	if err != nil {
		return nil, apperr.Transient("list appointments", err)
	}
	return appts, nil
}

// Counts returns appointment counts per status for the filter's provider and client.
func (l *Ledger) Counts(ctx context.Context, f Filter) (map[model.Status]int, error) {
	counts, err := l.store.CountByStatus(ctx, f)
	if err != nil {
		return nil, apperr.Transient("count appointments", err)
	}
	return counts, nil
}

// CountConfirmed makes the ledger the limiter's source of truth.
func (l *Ledger) CountConfirmed(ctx context.Context, providerID string) (int, error) {
	counts, err := l.Counts(ctx, Filter{ProviderID: providerID, Status: model.StatusConfirmed})
	if err != nil {
		return 0, err
	}
	return counts[model.StatusConfirmed], nil
}

func (l *Ledger) ActiveStartsBetween(ctx context.Context, providerID string, from, to time.Time) ([]time.Time, error) {
	return l.store.ActiveStartsBetween(ctx, providerID, from, to)
}
