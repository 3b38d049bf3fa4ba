package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// DefaultGranularityMinutes is the slot step used when the caller does not pick one.
const DefaultGranularityMinutes = 30

// ActiveStarts lists start times in [from, to) of a provider's pending or confirmed appointments.
type ActiveStarts interface {
	ActiveStartsBetween(ctx context.Context, providerID string, from, to time.Time) ([]time.Time, error)
}

// Candidates returns every step start inside the half-open window [Start, End). Service
// duration is not checked against End.
func Candidates(w model.AvailabilityWindow, step time.Duration) []model.TimeOfDay {
	if step <= 0 || w.End <= w.Start {
		return nil
	}
	stepSec := model.TimeOfDay(step / time.Second)
	if stepSec <= 0 {
		return nil
	}
	var out []model.TimeOfDay
	for t := w.Start; t < w.End; t += stepSec {
		out = append(out, t)
	}
	return out
}

// BuildSlots marks each candidate on date as unavailable iff its start is in taken.
func BuildSlots(date time.Time, w model.AvailabilityWindow, step time.Duration, taken []time.Time) []model.Slot {
	cands := Candidates(w, step)
	if len(cands) == 0 {
		return []model.Slot{}
	}
	busy := make(map[int64]struct{}, len(taken))
	for _, t := range taken {
		busy[t.UTC().Unix()] = struct{}{}
	}

	slots := make([]model.Slot, 0, len(cands))
	for _, c := range cands {
		at := c.On(date)
		_, isBusy := busy[at.Unix()]
		slots = append(slots, model.Slot{Time: c.String(), StartAt: at, Available: !isBusy})
	}
	return slots
}

// Generator derives bookable slots from the calendar and the ledger's current snapshot.
type Generator struct {
	windows WindowReader
	ledger  ActiveStarts
}

func NewGenerator(windows WindowReader, ledger ActiveStarts) *Generator {
	return &Generator{windows: windows, ledger: ledger}
}

// GenerateSlots returns the provider's slots for date in ascending order, empty when the
// weekday has no window. The ledger is read once for the whole day.
func (g *Generator) GenerateSlots(ctx context.Context, providerID string, date time.Time, granularityMinutes int) ([]model.Slot, error) {
	if granularityMinutes <= 0 {
		return nil, apperr.Validation("granularity_minutes", "must be positive")
	}
	day := model.Day(date)
	w, ok, err := g.windows.GetWindow(ctx, providerID, day.Weekday())
	if err != nil {
		return nil, apperr.Transient("get window", err)
	}
	if !ok {
		return []model.Slot{}, nil
	}

	taken, err := g.ledger.ActiveStartsBetween(ctx, providerID, w.Start.On(day), w.End.On(day))
	if err != nil {
		return nil, apperr.Transient("active starts", err)
	}
	return BuildSlots(day, w, time.Duration(granularityMinutes)*time.Minute, taken), nil
}
