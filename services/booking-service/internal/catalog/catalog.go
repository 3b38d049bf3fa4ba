// Package catalog manages the services a provider offers.
package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const (
	maxNameLength      = 120
	maxDurationMinutes = 24 * 60
	// MaxSearchResults bounds one public search page.
	MaxSearchResults = 50
)

type Store interface {
	InsertService(ctx context.Context, s model.Service) error
	GetService(ctx context.Context, id string) (model.Service, error)
	UpdateService(ctx context.Context, s model.Service) error
	// DeleteService refuses with ErrServiceInUse while the service has pending or confirmed
	// appointments; the check and the delete are one atomic step.
	DeleteService(ctx context.Context, id string) error
	ListServices(ctx context.Context, providerID string) ([]model.Service, error)
	// SearchServices matches query case-insensitively as a substring of the name, across all
	// providers, ordered by name. An empty query matches every service.
	SearchServices(ctx context.Context, query string, limit int) ([]model.Service, error)
}

// Input holds the mutable attributes of a service.
type Input struct {
	Name            string
	DurationMinutes int
	Price           float64
}

func (in Input) validate() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return in, apperr.Validation("name", "required")
	case len(in.Name) > maxNameLength:
		return in, apperr.Validation("name", fmt.Sprintf("at most %d characters", maxNameLength))
	case in.DurationMinutes <= 0:
		return in, apperr.Validation("duration_minutes", "must be positive")
	case in.DurationMinutes > maxDurationMinutes:
		return in, apperr.Validation("duration_minutes", "must fit in one day")
	case math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || in.Price < 0:
		return in, apperr.Validation("price", "must be zero or more")
	}
	in.Price = math.Round(in.Price*100) / 100
	return in, nil
}

type Catalog struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Catalog {
	return &Catalog{store: store, now: time.Now}
}

func (c *Catalog) Create(ctx context.Context, actor model.Actor, in Input) (model.Service, error) {
	if actor.Role != model.RoleProvider || actor.UserID == "" {
		return model.Service{}, fmt.Errorf("create service: %w", apperr.ErrForbidden)
	}
	in, err := in.validate()
	if err != nil {
		return model.Service{}, err
	}
	now := c.now().UTC()
	s := model.Service{
		ID:              uuid.NewString(),
		ProviderID:      actor.UserID,
		Name:            in.Name,
		DurationMinutes: in.DurationMinutes,
		Price:           in.Price,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.store.InsertService(ctx, s); err != nil {
		return model.Service{}, apperr.Transient("insert service", err)
	}
	return s, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (model.Service, error) {
	s, err := c.store.GetService(ctx, id)
	if err != nil {
		return model.Service{}, apperr.Transient("get service", err)
	}
	return s, nil
}

func (c *Catalog) Update(ctx context.Context, actor model.Actor, id string, in Input) (model.Service, error) {
	s, err := c.owned(ctx, actor, id)
	if err != nil {
		return model.Service{}, err
	}
	in, err = in.validate()
	if err != nil {
		return model.Service{}, err
	}
	s.Name, s.DurationMinutes, s.Price = in.Name, in.DurationMinutes, in.Price
	s.UpdatedAt = c.now().UTC()
	if err := c.store.UpdateService(ctx, s); err != nil {
		return model.Service{}, apperr.Transient("update service", err)
	}
	return s, nil
}

// Delete removes a service that no pending or confirmed appointment refers to.
func (c *Catalog) Delete(ctx context.Context, actor model.Actor, id string) error {
	if _, err := c.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := c.store.DeleteService(ctx, id); err != nil {
		return apperr.Transient("delete service", err)
	}
	return nil
}

func (c *Catalog) List(ctx context.Context, providerID string) ([]model.Service, error) {
	ss, err := c.store.ListServices(ctx, providerID)
	if err != nil {
		return nil, apperr.Transient("list services", err)
	}
	return ss, nil
}

// Search is the public directory: services from every provider whose name contains query.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]model.Service, error) {
	query = strings.TrimSpace(query)
	if len(query) > maxNameLength {
		return nil, apperr.Validation("q", fmt.Sprintf("at most %d characters", maxNameLength))
	}
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	ss, err := c.store.SearchServices(ctx, query, limit)
	if err != nil {
		return nil, apperr.Transient("search services", err)
	}
	return ss, nil
}

func (c *Catalog) owned(ctx context.Context, actor model.Actor, id string) (model.Service, error) {
	s, err := c.Get(ctx, id)
	if err != nil {
		return model.Service{}, err
	}
	if !actor.IsProvider(s.ProviderID) {
		return model.Service{}, fmt.Errorf("service %s: %w", id, apperr.ErrForbidden)
	}
	return s, nil
}
