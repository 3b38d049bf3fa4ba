// Package booking wires the calendar, ledger, limiter, catalog and notifications into the
// operations the HTTP layer exposes.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/limiter"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Deps struct {
	Calendar *availability.Calendar
	Slots    *availability.Generator
	Ledger   *ledger.Ledger
	Limiter  *limiter.Limiter
	Catalog  *catalog.Catalog
	Notifier notify.Dispatcher
	Logger   *slog.Logger

	// Granularity is the slot step in minutes; bookable starts sit on this grid.
	Granularity int
}

type Service struct {
	calendar *availability.Calendar
	slots    *availability.Generator
	ledger   *ledger.Ledger
	limiter  *limiter.Limiter
	catalog  *catalog.Catalog
	notifier notify.Dispatcher
	logger   *slog.Logger
	tracer   trace.Tracer
	step     model.TimeOfDay
}

func New(d Deps) *Service {
	granularity := d.Granularity
	if granularity <= 0 {
		granularity = availability.DefaultGranularityMinutes
	}
	return &Service{
		calendar: d.Calendar,
		slots:    d.Slots,
		ledger:   d.Ledger,
		limiter:  d.Limiter,
		catalog:  d.Catalog,
		notifier: d.Notifier,
		logger:   d.Logger,
		tracer:   otelx.Tracer("booking"),
		step:     model.TimeOfDay(granularity * 60),
	}
}

type BookRequest struct {
	ProviderID string
	ServiceID  string
	StartAt    time.Time
}

// Book creates a pending appointment for a client. The start must fall inside the provider's
// window for that weekday, land on the slot grid, and the provider must still be accepting
// bookings.
func (s *Service) Book(ctx context.Context, actor model.Actor, req BookRequest) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("provider_id", req.ProviderID),
		attribute.String("service_id", req.ServiceID),
	))
	defer func() { endSpan(span, err) }()

	if actor.Role != model.RoleClient || actor.UserID == "" {
		return model.Appointment{}, fmt.Errorf("only clients book appointments: %w", apperr.ErrForbidden)
	}
	svc, err := s.catalog.Get(ctx, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if svc.ProviderID != req.ProviderID {
		return model.Appointment{}, apperr.Validation("service_id", "not offered by this provider")
	}

	w, ok, err := s.calendar.GetWindow(ctx, req.ProviderID, req.StartAt.Weekday())
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok || !w.Contains(model.TimeOfDayOf(req.StartAt)) {
		return model.Appointment{}, apperr.Validation("start_at", "outside the provider's availability")
	}
	if !s.onGrid(w, req.StartAt) {
		return model.Appointment{}, apperr.Validation("start_at", "not an offered slot start")
	}

	accepting, err := s.limiter.IsAcceptingBookings(ctx, req.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !accepting {
		return model.Appointment{}, fmt.Errorf("provider %s: %w", req.ProviderID, apperr.ErrCapacity)
	}

	appt, err = s.ledger.Create(ctx, model.Appointment{
		ProviderID:  req.ProviderID,
		ClientID:    actor.UserID,
		ServiceID:   svc.ID,
		ClientEmail: actor.Email,
		StartAt:     req.StartAt,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment_id", appt.ID))

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.ProviderID,
		Kind:          notify.KindBookingRequested,
		Summary:       notify.Summary(svc.Name, appt.StartAt, appt.Status),
		AppointmentID: appt.ID,
		ServiceName:   svc.Name,
		StartAt:       appt.StartAt,
		Status:        appt.Status,
	})
	return appt, nil
}

// onGrid reports whether start is one of the candidates the slot generator offers for w.
func (s *Service) onGrid(w model.AvailabilityWindow, start time.Time) bool {
	if start.Nanosecond() != 0 {
		return false
	}
	return (model.TimeOfDayOf(start)-w.Start)%s.step == 0
}

// TransitionResult carries the updated appointment and, after a confirm, the provider's
// recomputed booking state.
type TransitionResult struct {
	Appointment model.Appointment
	Booking     *limiter.Status
}

func (s *Service) Transition(ctx context.Context, actor model.Actor, id string, to model.Status) (res TransitionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Transition", trace.WithAttributes(
		attribute.String("appointment_id", id),
		attribute.String("status", string(to)),
	))
	defer func() { endSpan(span, err) }()

	appt, err := s.ledger.UpdateStatus(ctx, actor, id, to)
	if err != nil {
		return TransitionResult{}, err
	}
	res.Appointment = appt

	if to == model.StatusConfirmed {
		st, err := s.limiter.Status(ctx, appt.ProviderID)
		if err != nil {
			s.logger.Warn("booking state recompute failed", "err", err, "provider_id", appt.ProviderID)
		} else {
			res.Booking = &st
		}
	}

	serviceName := ""
	if svc, err := s.catalog.Get(ctx, appt.ServiceID); err == nil {
		serviceName = svc.Name
	}
	n := notify.Notification{
		Kind:          notify.KindStatusChanged,
		Summary:       notify.Summary(serviceName, appt.StartAt, appt.Status),
		AppointmentID: appt.ID,
		ServiceName:   serviceName,
		StartAt:       appt.StartAt,
		Status:        appt.Status,
	}
	if actor.UserID == appt.ProviderID {
		n.RecipientID, n.RecipientEmail = appt.ClientID, appt.ClientEmail
	} else {
		n.RecipientID = appt.ProviderID
	}
	s.dispatch(ctx, n)
	return res, nil
}

type SlotsView struct {
	ProviderID  string         `json:"provider_id"`
	Date        string         `json:"date"`
	Granularity int            `json:"granularity_minutes"`
	Booking     limiter.Status `json:"booking"`
	Slots       []model.Slot   `json:"slots"`
}

// Slots lists the day's slots with the provider's booking state so the caller can disable the
// entry point when the provider is at its cap.
func (s *Service) Slots(ctx context.Context, providerID string, date time.Time, granularityMinutes int) (view SlotsView, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Slots", trace.WithAttributes(
		attribute.String("provider_id", providerID),
		attribute.String("date", date.Format(time.DateOnly)),
	))
	defer func() { endSpan(span, err) }()

	slots, err := s.slots.GenerateSlots(ctx, providerID, date, granularityMinutes)
	if err != nil {
		return SlotsView{}, err
	}
	st, err := s.limiter.Status(ctx, providerID)
	if err != nil {
		return SlotsView{}, err
	}
	return SlotsView{
		ProviderID:  providerID,
		Date:        date.Format(time.DateOnly),
		Granularity: granularityMinutes,
		Booking:     st,
		Slots:       slots,
	}, nil
}

func (s *Service) BookingStatus(ctx context.Context, providerID string) (limiter.Status, error) {
	return s.limiter.Status(ctx, providerID)
}

// Schedule lists the actor's own appointments: a provider's bookings or a client's requests.
func (s *Service) Schedule(ctx context.Context, actor model.Actor, f ledger.Filter) ([]model.Appointment, error) {
	switch actor.Role {
	case model.RoleProvider:
		f.ProviderID, f.ClientID = actor.UserID, ""
	case model.RoleClient:
		f.ClientID, f.ProviderID = actor.UserID, ""
	default:
		return nil, fmt.Errorf("role %q: %w", actor.Role, apperr.ErrForbidden)
	}
	return s.ledger.List(ctx, f)
}

type Dashboard struct {
	Role      model.Role      `json:"role"`
	Total     int             `json:"total"`
	Pending   int             `json:"pending"`
	Confirmed int             `json:"confirmed"`
	Rejected  int             `json:"rejected"`
	Cancelled int             `json:"cancelled"`
	Services  *int            `json:"services,omitempty"`
	Booking   *limiter.Status `json:"booking,omitempty"`
}

func (s *Service) Dashboard(ctx context.Context, actor model.Actor) (Dashboard, error) {
	f := ledger.Filter{}
	switch actor.Role {
	case model.RoleProvider:
		f.ProviderID = actor.UserID
	case model.RoleClient:
		f.ClientID = actor.UserID
	default:
		return Dashboard{}, fmt.Errorf("role %q: %w", actor.Role, apperr.ErrForbidden)
	}
	counts, err := s.ledger.Counts(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{
		Role:      actor.Role,
		Pending:   counts[model.StatusPending],
		Confirmed: counts[model.StatusConfirmed],
		Rejected:  counts[model.StatusRejected],
		Cancelled: counts[model.StatusCancelled],
	}
	d.Total = d.Pending + d.Confirmed + d.Rejected + d.Cancelled

	if actor.Role == model.RoleProvider {
		services, err := s.catalog.List(ctx, actor.UserID)
		if err != nil {
			return Dashboard{}, err
		}
		n := len(services)
		d.Services = &n
		st := limiter.Evaluate(d.Confirmed, s.limiter.Max())
		d.Booking = &st
	}
	return d, nil
}

// dispatch never fails the caller: the ledger change is already committed.
func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.logger.Error("notification dispatch failed", "err", err, "appointment_id", n.AppointmentID, "recipient_id", n.RecipientID)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) {
			span.SetStatus(codes.Error, apperr.Code(err))
		}
	}
	span.End()
}
