package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/limiter"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memstore"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recorder) Dispatch(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

var (
	provider = model.Actor{UserID: "provider-p", Role: model.RoleProvider}
	clientA  = model.Actor{UserID: "client-a", Role: model.RoleClient, Email: "a@example.com"}
	clientB  = model.Actor{UserID: "client-b", Role: model.RoleClient}
	monday   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc      *Service
	rec      *recorder
	service  model.Service
	calendar *availability.Calendar
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	cal := availability.NewCalendar(store)
	led := ledger.New(store, limiter.FreeTierMaxConfirmed)
	cat := catalog.New(store)
	rec := &recorder{}

	svc := New(Deps{
		Calendar: cal,
		Slots:    availability.NewGenerator(store, led),
		Ledger:   led,
		Limiter:  limiter.New(led, limiter.FreeTierMaxConfirmed),
		Catalog:  cat,
		Notifier: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if _, err := cal.SetWindow(ctx, provider, provider.UserID, int(time.Monday), "09:00", "17:00"); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	s, err := cat.Create(ctx, provider, catalog.Input{Name: "Haircut", DurationMinutes: 30, Price: 25})
	if err != nil {
		t.Fatalf("Create service failed: %v", err)
	}
	return fixture{svc: svc, rec: rec, service: s, calendar: cal}
}

func (f fixture) book(t *testing.T, client model.Actor, hour, minute int) model.Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), client, BookRequest{
		ProviderID: provider.UserID,
		ServiceID:  f.service.ID,
		StartAt:    monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
	})
	if err != nil {
		t.Fatalf("Book %02d:%02d failed: %v", hour, minute, err)
	}
	return appt
}

func TestBookedSlotShowsUnavailableAndConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, clientA, 10, 0)
	if appt.Status != model.StatusPending || appt.ClientEmail != "a@example.com" {
		t.Fatalf("unexpected appointment %+v", appt)
	}

	view, err := f.svc.Slots(ctx, provider.UserID, monday, 30)
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	if len(view.Slots) != 16 || !view.Booking.Accepting {
		t.Fatalf("unexpected view: %d slots, booking %+v", len(view.Slots), view.Booking)
	}
	for _, s := range view.Slots {
		if (s.Time == "10:00") == s.Available {
			t.Fatalf("slot %s available=%v", s.Time, s.Available)
		}
	}

	_, err = f.svc.Book(ctx, clientB, BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: appt.StartAt})
	if !errors.Is(err, apperr.ErrSlotTaken) {
		t.Fatalf("expected slot taken, got %v", err)
	}
}

func TestBookNotifiesProvider(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, clientA, 9, 30)

	if len(f.rec.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.rec.sent))
	}
	n := f.rec.sent[0]
	if n.RecipientID != provider.UserID || n.Kind != notify.KindBookingRequested || n.AppointmentID != appt.ID {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Summary != "Haircut on Mon, 01 Jan 2024 at 09:30 is pending" {
		t.Fatalf("unexpected summary %q", n.Summary)
	}
}

func TestBookValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name  string
		actor model.Actor
		req   BookRequest
		check func(error) bool
	}{
		{
			name:  "provider cannot book",
			actor: provider,
			req:   BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: monday.Add(10 * time.Hour)},
			check: func(err error) bool { return errors.Is(err, apperr.ErrForbidden) },
		},
		{
			name:  "unknown service",
			actor: clientA,
			req:   BookRequest{ProviderID: provider.UserID, ServiceID: "nope", StartAt: monday.Add(10 * time.Hour)},
			check: func(err error) bool { return errors.Is(err, apperr.ErrNotFound) },
		},
		{
			name:  "service of another provider",
			actor: clientA,
			req:   BookRequest{ProviderID: "someone-else", ServiceID: f.service.ID, StartAt: monday.Add(10 * time.Hour)},
			check: isValidation("service_id"),
		},
		{
			name:  "window end is outside",
			actor: clientA,
			req:   BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: monday.Add(17 * time.Hour)},
			check: isValidation("start_at"),
		},
		{
			name:  "no window on tuesday",
			actor: clientA,
			req:   BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: monday.AddDate(0, 0, 1).Add(10 * time.Hour)},
			check: isValidation("start_at"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tc.actor, tc.req)
			if !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestBookRejectsStartsOffTheSlotGrid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := func(d time.Duration) BookRequest {
		return BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: monday.Add(d)}
	}

	for _, d := range []time.Duration{
		10*time.Hour + 30*time.Second,
		10*time.Hour + 7*time.Minute,
		10*time.Hour + time.Millisecond,
	} {
		if _, err := f.svc.Book(ctx, clientA, at(d)); !isValidation("start_at")(err) {
			t.Fatalf("Book at +%s: expected start_at validation error, got %v", d, err)
		}
	}

	view, err := f.svc.Slots(ctx, provider.UserID, monday, 30)
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	for _, s := range view.Slots {
		if !s.Available {
			t.Fatalf("slot %s taken by a rejected booking", s.Time)
		}
	}

	if _, err := f.svc.Book(ctx, clientA, at(10*time.Hour)); err != nil {
		t.Fatalf("Book at 10:00 failed: %v", err)
	}
}

func TestBookGridFollowsConfiguredGranularity(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	cal := availability.NewCalendar(store)
	led := ledger.New(store, limiter.FreeTierMaxConfirmed)
	cat := catalog.New(store)
	svc := New(Deps{
		Calendar:    cal,
		Slots:       availability.NewGenerator(store, led),
		Ledger:      led,
		Limiter:     limiter.New(led, limiter.FreeTierMaxConfirmed),
		Catalog:     cat,
		Notifier:    &recorder{},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Granularity: 45,
	})
	if _, err := cal.SetWindow(ctx, provider, provider.UserID, int(time.Monday), "09:15", "12:00"); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	s, err := cat.Create(ctx, provider, catalog.Input{Name: "Massage", DurationMinutes: 45, Price: 60})
	if err != nil {
		t.Fatalf("Create service failed: %v", err)
	}
	req := func(h, m int) BookRequest {
		return BookRequest{ProviderID: provider.UserID, ServiceID: s.ID, StartAt: monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)}
	}

	if _, err := svc.Book(ctx, clientA, req(10, 0)); err != nil {
		t.Fatalf("Book 10:00 failed: %v", err)
	}
	if _, err := svc.Book(ctx, clientA, req(9, 30)); !isValidation("start_at")(err) {
		t.Fatalf("Book 09:30: expected start_at validation error, got %v", err)
	}
}

func isValidation(field string) func(error) bool {
	return func(err error) bool {
		var ve *apperr.ValidationError
		return errors.As(err, &ve) && ve.Field == field
	}
}

func TestConfirmUntilCapThenBookingRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var appts []model.Appointment
	for i := 0; i < 6; i++ {
		appts = append(appts, f.book(t, clientA, 9+i, 0))
	}
	var last TransitionResult
	for _, appt := range appts[:5] {
		res, err := f.svc.Transition(ctx, provider, appt.ID, model.StatusConfirmed)
		if err != nil {
			t.Fatalf("confirm failed: %v", err)
		}
		last = res
	}
	if last.Booking == nil || last.Booking.Accepting || last.Booking.Confirmed != 5 {
		t.Fatalf("expected recomputed state at cap, got %+v", last.Booking)
	}

	_, err := f.svc.Transition(ctx, provider, appts[5].ID, model.StatusConfirmed)
	if !errors.Is(err, apperr.ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	view, err := f.svc.Slots(ctx, provider.UserID, monday, 30)
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	if view.Booking.Accepting {
		t.Fatal("slots view must report not accepting")
	}

	_, err = f.svc.Book(ctx, clientB, BookRequest{ProviderID: provider.UserID, ServiceID: f.service.ID, StartAt: monday.Add(16 * time.Hour)})
	if !errors.Is(err, apperr.ErrCapacity) {
		t.Fatalf("expected capacity error on booking, got %v", err)
	}
}

func TestTransitionNotifiesCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, clientA, 10, 0)
	b := f.book(t, clientB, 11, 0)
	f.rec.sent = nil

	if _, err := f.svc.Transition(ctx, provider, a.ID, model.StatusRejected); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := f.svc.Transition(ctx, clientB, b.ID, model.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if len(f.rec.sent) != 2 {
		t.Fatalf("expected two notifications, got %d", len(f.rec.sent))
	}
	if n := f.rec.sent[0]; n.RecipientID != clientA.UserID || n.RecipientEmail != "a@example.com" || n.Status != model.StatusRejected {
		t.Fatalf("unexpected client notification %+v", n)
	}
	if n := f.rec.sent[1]; n.RecipientID != provider.UserID || n.Status != model.StatusCancelled {
		t.Fatalf("unexpected provider notification %+v", n)
	}

	// A failed transition sends nothing.
	if _, err := f.svc.Transition(ctx, provider, b.ID, model.StatusConfirmed); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(f.rec.sent) != 2 {
		t.Fatalf("failed transition must not notify, got %d", len(f.rec.sent))
	}
}

func TestDispatchFailureKeepsLedgerChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rec.err = errors.New("broker down")

	appt := f.book(t, clientA, 10, 0)
	res, err := f.svc.Transition(ctx, provider, appt.ID, model.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm must succeed despite notifier failure: %v", err)
	}
	if res.Appointment.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", res.Appointment.Status)
	}
}

func TestScheduleAndDashboardAreScopedToActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, clientA, 14, 0)
	f.book(t, clientA, 10, 0)
	f.book(t, clientB, 12, 0)
	if _, err := f.svc.Transition(ctx, provider, a.ID, model.StatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	pending, err := f.svc.Schedule(ctx, provider, ledger.Filter{Status: model.StatusPending, Schedule: true, ClientID: clientB.UserID})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(pending) != 2 || model.TimeOfDayOf(pending[0].StartAt).String() != "10:00" {
		t.Fatalf("provider schedule must ignore client filter and order by start: %+v", pending)
	}

	mine, err := f.svc.Schedule(ctx, clientB, ledger.Filter{ProviderID: "ignored"})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ClientID != clientB.UserID {
		t.Fatalf("client schedule leaked: %+v", mine)
	}

	d, err := f.svc.Dashboard(ctx, provider)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if d.Total != 3 || d.Pending != 2 || d.Confirmed != 1 || d.Services == nil || *d.Services != 1 {
		t.Fatalf("unexpected provider dashboard %+v", d)
	}
	if d.Booking == nil || !d.Booking.Accepting || d.Booking.Cap != limiter.FreeTierMaxConfirmed {
		t.Fatalf("unexpected booking state %+v", d.Booking)
	}

	cd, err := f.svc.Dashboard(ctx, clientA)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if cd.Total != 2 || cd.Services != nil || cd.Booking != nil {
		t.Fatalf("unexpected client dashboard %+v", cd)
	}
}
