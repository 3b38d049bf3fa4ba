package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/limiter"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	ProviderID string `json:"provider_id" validate:"required,max=128"`
	ServiceID  string `json:"service_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string `json:"time" validate:"required"`
}

type appointmentItem struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	ClientID   string         `json:"client_id"`
	ServiceID  string         `json:"service_id"`
	Date       string         `json:"date"`
	Time       string         `json:"time"`
	StartAt    string         `json:"start_at"`
	Status     model.Status   `json:"status"`
	Actions    []model.Status `json:"actions"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type transitionResponse struct {
	Appointment appointmentItem `json:"appointment"`
	Booking     *limiter.Status `json:"booking,omitempty"`
}

func toItem(actor model.Actor, a model.Appointment) appointmentItem {
	actions := lifecycle.Actions(actor, a)
	if actions == nil {
		actions = []model.Status{}
	}
	return appointmentItem{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		ClientID:   a.ClientID,
		ServiceID:  a.ServiceID,
		Date:       a.StartAt.Format(time.DateOnly),
		Time:       model.TimeOfDayOf(a.StartAt).String(),
		StartAt:    a.StartAt.Format("2006-01-02T15:04:05"),
		Status:     a.Status,
		Actions:    actions,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createAppointmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	day, err := parseDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tod, err := model.ParseTimeOfDay(req.Time)
	if err != nil {
		h.writeError(w, r, apperr.Validation("time", err.Error()))
		return
	}

	appt, err := h.booking.Book(r.Context(), actor, booking.BookRequest{
		ProviderID: strings.TrimSpace(req.ProviderID),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		StartAt:    tod.On(day),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(actor, appt))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := ledger.Filter{
		ServiceID: strings.TrimSpace(q.Get("service_id")),
		Schedule:  q.Get("view") == "schedule",
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, ok := model.ParseStatus(raw)
		if !ok {
			h.writeError(w, r, apperr.Validation("status", "unknown status"))
			return
		}
		f.Status = st
	}
	if f.Limit, err = queryInt(r, "limit", ledger.DefaultListLimit); err != nil {
		h.writeError(w, r, err)
		return
	}

	appts, err := h.booking.Schedule(r.Context(), actor, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toItem(actor, a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) transition(to model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		res, err := h.booking.Transition(r.Context(), actor, r.PathValue("id"), to)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, transitionResponse{
			Appointment: toItem(actor, res.Appointment),
			Booking:     res.Booking,
		})
	}
}
