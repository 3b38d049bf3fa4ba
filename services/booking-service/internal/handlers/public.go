package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
)

type slotsQuery struct {
	ProviderID  string `json:"provider_id" validate:"required,max=128"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Granularity int    `json:"granularity_minutes" validate:"gt=0,lte=720"`
}

func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	g, err := queryInt(r, "granularity_minutes", h.granularity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := slotsQuery{
		ProviderID:  strings.TrimSpace(r.URL.Query().Get("provider_id")),
		Date:        strings.TrimSpace(r.URL.Query().Get("date")),
		Granularity: g,
	}
	if err := h.check(&q); err != nil {
		h.writeError(w, r, err)
		return
	}
	day, err := parseDate("date", q.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.booking.Slots(r.Context(), q.ProviderID, day, q.Granularity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) BookingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.booking.BookingStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type serviceSearchQuery struct {
	Q     string `json:"q" validate:"max=120"`
	Limit int    `json:"limit" validate:"gt=0,lte=50"`
}

// SearchServices lists services across providers whose name contains q, for browsing.
func (h *Handler) SearchServices(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", catalog.MaxSearchResults)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := serviceSearchQuery{Q: strings.TrimSpace(r.URL.Query().Get("q")), Limit: limit}
	if err := h.check(&q); err != nil {
		h.writeError(w, r, err)
		return
	}
	services, err := h.catalog.Search(r.Context(), q.Q, q.Limit)
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

func (h *Handler) ProviderServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.List(r.Context(), r.PathValue("id"))
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

func (h *Handler) ProviderAvailability(w http.ResponseWriter, r *http.Request) {
	h.writeWindows(w, r, r.PathValue("id"))
}
