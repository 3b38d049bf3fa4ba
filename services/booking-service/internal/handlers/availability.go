package handlers

import (
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// setWindowRequest with both fields empty clears the weekday.
type setWindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type windowItem struct {
	Weekday int    `json:"weekday"`
	Day     string `json:"day"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func toWindowItem(w model.AvailabilityWindow) windowItem {
	return windowItem{
		Weekday: int(w.Weekday),
		Day:     w.Weekday.String(),
		Start:   w.Start.String(),
		End:     w.End.String(),
	}
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil {
		h.writeError(w, r, apperr.Validation("weekday", "must be an integer between 0 and 6"))
		return
	}
	var req setWindowRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	win, err := h.calendar.SetWindow(r.Context(), actor, actor.UserID, weekday, req.Start, req.End)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if win == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toWindowItem(*win))
}

func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeWindows(w, r, actor.UserID)
}

func (h *Handler) writeWindows(w http.ResponseWriter, r *http.Request, providerID string) {
	windows, err := h.calendar.ListWindows(r.Context(), providerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, toWindowItem(win))
	}
	writeJSON(w, http.StatusOK, items)
}
