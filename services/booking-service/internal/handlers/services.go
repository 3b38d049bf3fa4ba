package handlers

import (
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type serviceRequest struct {
	Name            string  `json:"name" validate:"required,max=120"`
	DurationMinutes int     `json:"duration_minutes" validate:"gt=0,lte=1440"`
	Price           float64 `json:"price" validate:"gte=0"`
}

func (s serviceRequest) input() catalog.Input {
	return catalog.Input{Name: s.Name, DurationMinutes: s.DurationMinutes, Price: s.Price}
}

type serviceItem struct {
	ID              string  `json:"id"`
	ProviderID      string  `json:"provider_id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toServiceItem(s model.Service) serviceItem {
	return serviceItem{
		ID:              s.ID,
		ProviderID:      s.ProviderID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req serviceRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.catalog.Create(r.Context(), actor, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceItem(s))
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req serviceRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.catalog.Update(r.Context(), actor, r.PathValue("id"), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceItem(s))
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services, err := h.catalog.List(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, toServiceItem(s))
	}
	writeJSON(w, http.StatusOK, items)
}
