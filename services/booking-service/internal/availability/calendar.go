package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// WindowReader is the read side of the weekly calendar.
type WindowReader interface {
	GetWindow(ctx context.Context, providerID string, weekday time.Weekday) (model.AvailabilityWindow, bool, error)
}

type WindowStore interface {
	WindowReader
	UpsertWindow(ctx context.Context, w model.AvailabilityWindow) error
	DeleteWindow(ctx context.Context, providerID string, weekday time.Weekday) error
	ListWindows(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error)
}

// Calendar holds each provider's recurring weekly open hours, at most one window per weekday.
type Calendar struct {
	store WindowStore
	now   func() time.Time
}

func NewCalendar(store WindowStore) *Calendar {
	return &Calendar{store: store, now: time.Now}
}

// SetWindow replaces the window for weekday (0 = Sunday). Empty start and end remove it, in
// which case the returned window is nil.
func (c *Calendar) SetWindow(ctx context.Context, actor model.Actor, providerID string, weekday int, start, end string) (*model.AvailabilityWindow, error) {
	if !actor.IsProvider(providerID) {
		return nil, fmt.Errorf("calendar of %s: %w", providerID, apperr.ErrForbidden)
	}
	if weekday < 0 || weekday > 6 {
		return nil, apperr.Validation("weekday", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	day := time.Weekday(weekday)
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)

	if start == "" && end == "" {
		if err := c.store.DeleteWindow(ctx, providerID, day); err != nil {
			return nil, apperr.Transient("delete window", err)
		}
		return nil, nil
	}
	if start == "" {
		return nil, apperr.Validation("start", "required when end is set")
	}
	if end == "" {
		return nil, apperr.Validation("end", "required when start is set")
	}

	from, err := model.ParseTimeOfDay(start)
	if err != nil {
		return nil, apperr.Validation("start", err.Error())
	}
	to, err := model.ParseTimeOfDay(end)
	if err != nil {
		return nil, apperr.Validation("end", err.Error())
	}
	if from >= to {
		return nil, apperr.Validation("end", "must be after start")
	}

	w := model.AvailabilityWindow{
		ProviderID: providerID,
		Weekday:    day,
		Start:      from,
		End:        to,
		UpdatedAt:  c.now().UTC(),
	}
	if err := c.store.UpsertWindow(ctx, w); err != nil {
		return nil, apperr.Transient("upsert window", err)
	}
	return &w, nil
}

func (c *Calendar) GetWindow(ctx context.Context, providerID string, weekday time.Weekday) (model.AvailabilityWindow, bool, error) {
	w, ok, err := c.store.GetWindow(ctx, providerID, weekday)
	if err != nil {
		return model.AvailabilityWindow{}, false, apperr.Transient("get window", err)
	}
	return w, ok, nil
}

// ListWindows returns the provider's week ordered Sunday first.
func (c *Calendar) ListWindows(ctx context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	ws, err := c.store.ListWindows(ctx, providerID)
	if err != nil {
		return nil, apperr.Transient("list windows", err)
	}
	return ws, nil
}
