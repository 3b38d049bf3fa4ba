package availability

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type mapStore struct {
	windows map[string]model.AvailabilityWindow
}

func newMapStore() *mapStore { return &mapStore{windows: map[string]model.AvailabilityWindow{}} }

func key(p string, d time.Weekday) string { return p + "/" + d.String() }

func (m *mapStore) GetWindow(_ context.Context, p string, d time.Weekday) (model.AvailabilityWindow, bool, error) {
	w, ok := m.windows[key(p, d)]
	return w, ok, nil
}

func (m *mapStore) UpsertWindow(_ context.Context, w model.AvailabilityWindow) error {
	m.windows[key(w.ProviderID, w.Weekday)] = w
	return nil
}

func (m *mapStore) DeleteWindow(_ context.Context, p string, d time.Weekday) error {
	delete(m.windows, key(p, d))
	return nil
}

func (m *mapStore) ListWindows(_ context.Context, p string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	for _, w := range m.windows {
		if w.ProviderID == p {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

var owner = model.Actor{UserID: "p1", Role: model.RoleProvider}

func TestSetWindowUpsertsAndDeletes(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	cal := NewCalendar(store)

	if _, err := cal.SetWindow(ctx, owner, "p1", 1, "09:00", "17:00"); err != nil {
		t.Fatalf("SetWindow failed: %v", err)
	}
	if _, err := cal.SetWindow(ctx, owner, "p1", 1, "10:00", "12:00"); err != nil {
		t.Fatalf("SetWindow replace failed: %v", err)
	}
	w, ok, err := cal.GetWindow(ctx, "p1", time.Monday)
	if err != nil || !ok {
		t.Fatalf("expected window, ok=%v err=%v", ok, err)
	}
	if w.Start.String() != "10:00" || w.End.String() != "12:00" {
		t.Fatalf("window not replaced: %s-%s", w.Start, w.End)
	}
	if len(store.windows) != 1 {
		t.Fatalf("expected one window per weekday, got %d", len(store.windows))
	}

	// Same arguments twice leave the same state.
	for i := 0; i < 2; i++ {
		got, err := cal.SetWindow(ctx, owner, "p1", 1, "", "")
		if err != nil || got != nil {
			t.Fatalf("delete %d: got %v err %v", i, got, err)
		}
	}
	if _, ok, _ := cal.GetWindow(ctx, "p1", time.Monday); ok {
		t.Fatal("window should be gone")
	}
}

func TestSetWindowValidation(t *testing.T) {
	ctx := context.Background()
	cal := NewCalendar(newMapStore())

	cases := []struct {
		name       string
		weekday    int
		start, end string
		field      string
	}{
		{"end before start", 1, "17:00", "09:00", "end"},
		{"equal bounds", 1, "09:00", "09:00", "end"},
		{"missing end", 1, "09:00", "", "end"},
		{"missing start", 1, "", "17:00", "start"},
		{"bad start", 1, "9am", "17:00", "start"},
		{"weekday too large", 7, "09:00", "17:00", "weekday"},
		{"weekday negative", -1, "09:00", "17:00", "weekday"},
	}
	for _, tc := range cases {
		_, err := cal.SetWindow(ctx, owner, "p1", tc.weekday, tc.start, tc.end)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, ve.Field)
		}
	}
}

func TestSetWindowOnlyOwner(t *testing.T) {
	ctx := context.Background()
	cal := NewCalendar(newMapStore())

	for _, actor := range []model.Actor{
		{UserID: "p2", Role: model.RoleProvider},
		{UserID: "p1", Role: model.RoleClient},
	} {
		if _, err := cal.SetWindow(ctx, actor, "p1", 1, "09:00", "17:00"); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("actor %+v: expected forbidden, got %v", actor, err)
		}
	}
}

func TestListWindowsOrdered(t *testing.T) {
	ctx := context.Background()
	cal := NewCalendar(newMapStore())
	for _, d := range []int{5, 0, 3} {
		if _, err := cal.SetWindow(ctx, owner, "p1", d, "08:00", "12:00"); err != nil {
			t.Fatalf("SetWindow %d: %v", d, err)
		}
	}
	ws, err := cal.ListWindows(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWindows failed: %v", err)
	}
	if len(ws) != 3 || ws[0].Weekday != time.Sunday || ws[2].Weekday != time.Friday {
		t.Fatalf("unexpected order %v", ws)
	}
}
