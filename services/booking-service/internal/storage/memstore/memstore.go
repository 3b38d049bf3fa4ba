// Package memstore keeps the booking data in process memory. A single mutex serializes
// writes, which gives the same slot and cap guarantees the Postgres store gets from its
// unique index and advisory lock.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

var (
	_ ledger.Store             = (*Store)(nil)
	_ catalog.Store            = (*Store)(nil)
	_ availability.WindowStore = (*Store)(nil)
)

type windowKey struct {
	providerID string
	weekday    time.Weekday
}

type Store struct {
	mu           sync.RWMutex
	appointments map[string]model.Appointment
	services     map[string]model.Service
	windows      map[windowKey]model.AvailabilityWindow
}

func New() *Store {
	return &Store{
		appointments: map[string]model.Appointment{},
		services:     map[string]model.Service{},
		windows:      map[windowKey]model.AvailabilityWindow{},
	}
}

func (s *Store) InsertAppointment(_ context.Context, appt model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[appt.ID]; ok {
		return fmt.Errorf("appointment %s already exists", appt.ID)
	}
	if _, ok := s.services[appt.ServiceID]; !ok {
		return fmt.Errorf("service %s: %w", appt.ServiceID, apperr.ErrNotFound)
	}
	for _, existing := range s.appointments {
		if existing.ProviderID == appt.ProviderID && existing.Status.Active() && existing.StartAt.Equal(appt.StartAt) {
			return apperr.ErrSlotTaken
		}
	}
	s.appointments[appt.ID] = appt
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	return appt, nil
}

func (s *Store) TransitionAppointment(_ context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	if appt.Status != from {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s: %w", id, appt.Status, apperr.ErrInvalidTransition)
	}
	appt.Status = to
	appt.UpdatedAt = at
	s.appointments[id] = appt
	return appt, nil
}

func (s *Store) ConfirmAppointment(_ context.Context, id string, maxConfirmed int, at time.Time) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	if appt.Status != model.StatusPending {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s: %w", id, appt.Status, apperr.ErrInvalidTransition)
	}
	confirmed := 0
	for _, other := range s.appointments {
		if other.ProviderID == appt.ProviderID && other.Status == model.StatusConfirmed {
			confirmed++
		}
	}
	if confirmed >= maxConfirmed {
		return model.Appointment{}, fmt.Errorf("provider %s holds %d confirmed: %w", appt.ProviderID, confirmed, apperr.ErrCapacity)
	}
	appt.Status = model.StatusConfirmed
	appt.UpdatedAt = at
	s.appointments[id] = appt
	return appt, nil
}

func (s *Store) ListAppointments(_ context.Context, f ledger.Filter) ([]model.Appointment, error) {
	s.mu.RLock()
	out := make([]model.Appointment, 0)
	for _, appt := range s.appointments {
		if matches(f, appt) {
			out = append(out, appt)
		}
	}
	s.mu.RUnlock()

	if f.Schedule {
		sort.Slice(out, func(i, j int) bool {
			if out[i].StartAt.Equal(out[j].StartAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].StartAt.Before(out[j].StartAt)
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID > out[j].ID
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context, f ledger.Filter) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[model.Status]int{}
	for _, appt := range s.appointments {
		if matches(f, appt) {
			counts[appt.Status]++
		}
	}
	return counts, nil
}

func (s *Store) ActiveStartsBetween(_ context.Context, providerID string, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []time.Time
	for _, appt := range s.appointments {
		if appt.ProviderID != providerID || !appt.Status.Active() {
			continue
		}
		if !appt.StartAt.Before(from) && appt.StartAt.Before(to) {
			out = append(out, appt.StartAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func matches(f ledger.Filter, appt model.Appointment) bool {
	switch {
	case f.ProviderID != "" && appt.ProviderID != f.ProviderID:
		return false
	case f.ClientID != "" && appt.ClientID != f.ClientID:
		return false
	case f.ServiceID != "" && appt.ServiceID != f.ServiceID:
		return false
	case f.Status != "" && appt.Status != f.Status:
		return false
	}
	return true
}

func (s *Store) InsertService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; ok {
		return fmt.Errorf("service %s already exists", svc.ID)
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) GetService(_ context.Context, id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	return svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; !ok {
		return fmt.Errorf("service %s: %w", svc.ID, apperr.ErrNotFound)
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	for _, appt := range s.appointments {
		if appt.ServiceID == id && appt.Status.Active() {
			return fmt.Errorf("delete service %s: %w", id, apperr.ErrServiceInUse)
		}
	}
	delete(s.services, id)
	return nil
}

func (s *Store) ListServices(_ context.Context, providerID string) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Service, 0)
	for _, svc := range s.services {
		if svc.ProviderID == providerID {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) SearchServices(_ context.Context, query string, limit int) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(query)
	out := make([]model.Service, 0)
	for _, svc := range s.services {
		if strings.Contains(strings.ToLower(svc.Name), needle) {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpsertWindow(_ context.Context, w model.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[windowKey{w.ProviderID, w.Weekday}] = w
	return nil
}

func (s *Store) DeleteWindow(_ context.Context, providerID string, weekday time.Weekday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, windowKey{providerID, weekday})
	return nil
}

func (s *Store) GetWindow(_ context.Context, providerID string, weekday time.Weekday) (model.AvailabilityWindow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[windowKey{providerID, weekday}]
	return w, ok, nil
}

func (s *Store) ListWindows(_ context.Context, providerID string) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AvailabilityWindow, 0, 7)
	for k, w := range s.windows {
		if k.providerID == providerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}
