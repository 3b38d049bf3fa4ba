// Package limiter decides whether a provider may take more bookings under the free tier.
package limiter

import (
	"context"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
)

// FreeTierMaxConfirmed is the number of confirmed appointments a free-tier provider may hold.
const FreeTierMaxConfirmed = 5

// Counter reports how many appointments of a provider are currently confirmed.
type Counter interface {
	CountConfirmed(ctx context.Context, providerID string) (int, error)
}

type Status struct {
	Confirmed int  `json:"confirmed"`
	Cap       int  `json:"cap"`
	Accepting bool `json:"accepting_bookings"`
}

// Evaluate is the cap rule: a provider accepts bookings while confirmed < max.
func Evaluate(confirmed, max int) Status {
	return Status{Confirmed: confirmed, Cap: max, Accepting: confirmed < max}
}

type Limiter struct {
	counter Counter
	max     int
}

func New(counter Counter, max int) *Limiter {
	if max <= 0 {
		max = FreeTierMaxConfirmed
	}
	return &Limiter{counter: counter, max: max}
}

func (l *Limiter) Max() int { return l.max }

func (l *Limiter) Status(ctx context.Context, providerID string) (Status, error) {
	n, err := l.counter.CountConfirmed(ctx, providerID)
	if err != nil {
		return Status{}, apperr.Transient("count confirmed", err)
	}
	return Evaluate(n, l.max), nil
}

// IsAcceptingBookings is the soft check used before showing or accepting a booking. The hard
// gate runs inside the store when an appointment is confirmed.
func (l *Limiter) IsAcceptingBookings(ctx context.Context, providerID string) (bool, error) {
	st, err := l.Status(ctx, providerID)
	if err != nil {
		return false, err
	}
	return st.Accepting, nil
}
