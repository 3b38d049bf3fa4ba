package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// writeError renders err as {"error","code"} with the status its kind maps to. Messages for
// capacity and conflict are fixed so clients can tell them apart from generic failures.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "2")
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	code := apperr.Code(err)
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		msg := ve.Message
		if ve.Field != "" {
			msg = ve.Field + " " + ve.Message
		}
		return http.StatusBadRequest, errorBody{Error: msg, Code: code, Field: ve.Field}
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "not permitted", Code: code}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found", Code: code}
	case errors.Is(err, apperr.ErrServiceInUse):
		return http.StatusConflict, errorBody{Error: apperr.ErrServiceInUse.Error(), Code: code}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, errorBody{Error: apperr.ErrSlotTaken.Error(), Code: code}
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: apperr.ErrInvalidTransition.Error(), Code: code}
	case errors.Is(err, apperr.ErrCapacity):
		return http.StatusUnprocessableEntity, errorBody{Error: apperr.ErrCapacity.Error(), Code: code}
	case code == "unavailable":
		return http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, retry shortly", Code: code}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: code}
	}
}
