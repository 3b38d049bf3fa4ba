package catalog_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memstore"
)

var (
	owner  = model.Actor{UserID: "p1", Role: model.RoleProvider}
	rival  = model.Actor{UserID: "p2", Role: model.RoleProvider}
	client = model.Actor{UserID: "c1", Role: model.RoleClient}
)

func TestCreateValidates(t *testing.T) {
	c := catalog.New(memstore.New())
	cases := []struct {
		in    catalog.Input
		field string
	}{
		{catalog.Input{Name: " ", DurationMinutes: 30}, "name"},
		{catalog.Input{Name: "Cut", DurationMinutes: 0}, "duration_minutes"},
		{catalog.Input{Name: "Cut", DurationMinutes: 30, Price: -1}, "price"},
	}
	for _, tc := range cases {
		_, err := c.Create(context.Background(), owner, tc.in)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Fatalf("input %+v: expected %s validation error, got %v", tc.in, tc.field, err)
		}
	}
}

func TestCreateRoundsPriceAndOwns(t *testing.T) {
	c := catalog.New(memstore.New())
	s, err := c.Create(context.Background(), owner, catalog.Input{Name: "  Haircut ", DurationMinutes: 45, Price: 19.999})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.Name != "Haircut" || s.Price != 20 || s.ProviderID != "p1" {
		t.Fatalf("unexpected service %+v", s)
	}
	if _, err := c.Create(context.Background(), client, catalog.Input{Name: "x", DurationMinutes: 10}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("client must not create services, got %v", err)
	}
}

func TestUpdateOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(memstore.New())
	s, _ := c.Create(ctx, owner, catalog.Input{Name: "Cut", DurationMinutes: 30, Price: 10})

	if _, err := c.Update(ctx, rival, s.ID, catalog.Input{Name: "Mine", DurationMinutes: 30}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, err := c.Update(ctx, owner, s.ID, catalog.Input{Name: "Long cut", DurationMinutes: 60, Price: 25.5})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.ID != s.ID || got.Name != "Long cut" || got.DurationMinutes != 60 {
		t.Fatalf("unexpected update %+v", got)
	}
	if _, err := c.Update(ctx, owner, "missing", catalog.Input{Name: "x", DurationMinutes: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRefusedWhileActive(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	c := catalog.New(store)
	s, _ := c.Create(ctx, owner, catalog.Input{Name: "Cut", DurationMinutes: 30})

	appt := model.Appointment{
		ID: "a1", ProviderID: "p1", ClientID: "c1", ServiceID: s.ID,
		StartAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Status: model.StatusPending,
	}
	if err := store.InsertAppointment(ctx, appt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := c.Delete(ctx, owner, s.ID); !errors.Is(err, apperr.ErrServiceInUse) {
		t.Fatalf("expected service in use, got %v", err)
	}

	if _, err := store.TransitionAppointment(ctx, "a1", model.StatusPending, model.StatusRejected, time.Now()); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := c.Delete(ctx, owner, s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	list, _ := c.List(ctx, "p1")
	if len(list) != 0 {
		t.Fatalf("expected empty catalog, got %v", list)
	}
}

func TestSearchAcrossProviders(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(memstore.New())
	for _, in := range []struct {
		actor model.Actor
		name  string
	}{{owner, "Haircut"}, {rival, "Kids haircut"}, {rival, "Massage"}} {
		if _, err := c.Create(ctx, in.actor, catalog.Input{Name: in.name, DurationMinutes: 30}); err != nil {
			t.Fatalf("Create %s failed: %v", in.name, err)
		}
	}

	got, err := c.Search(ctx, "  haircut ", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Haircut" || got[1].Name != "Kids haircut" {
		t.Fatalf("unexpected results %+v", got)
	}
	if got, _ := c.Search(ctx, "", 2); len(got) != 2 {
		t.Fatalf("expected limit to cap results, got %d", len(got))
	}
	if got, _ := c.Search(ctx, "yoga", 0); len(got) != 0 {
		t.Fatalf("expected no match, got %+v", got)
	}

	var ve *apperr.ValidationError
	if _, err := c.Search(ctx, strings.Repeat("x", 121), 0); !errors.As(err, &ve) || ve.Field != "q" {
		t.Fatalf("expected q validation error, got %v", err)
	}
}

func TestDeleteRacingBookingNeverOrphansAppointment(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		store := memstore.New()
		c := catalog.New(store)
		s, err := c.Create(ctx, owner, catalog.Input{Name: "Cut", DurationMinutes: 30})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		var wg sync.WaitGroup
		var deleteErr, insertErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = c.Delete(ctx, owner, s.ID)
		}()
		go func() {
			defer wg.Done()
			insertErr = store.InsertAppointment(ctx, model.Appointment{
				ID: "a1", ProviderID: "p1", ClientID: "c1", ServiceID: s.ID,
				StartAt: start, Status: model.StatusPending,
			})
		}()
		wg.Wait()

		switch {
		case deleteErr == nil && insertErr == nil:
			t.Fatalf("run %d: appointment created for a deleted service", i)
		case deleteErr == nil && !errors.Is(insertErr, apperr.ErrNotFound):
			t.Fatalf("run %d: expected insert not found after delete, got %v", i, insertErr)
		case insertErr == nil && !errors.Is(deleteErr, apperr.ErrServiceInUse):
			t.Fatalf("run %d: expected delete refused after insert, got %v", i, deleteErr)
		}
	}
}
