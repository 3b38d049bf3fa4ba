// Package handlers exposes the booking engine over JSON/HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

type Handler struct {
	booking     *booking.Service
	calendar    *availability.Calendar
	catalog     *catalog.Catalog
	logger      *slog.Logger
	validate    *validator.Validate
	granularity int
}

type Config struct {
	Booking  *booking.Service
	Calendar *availability.Calendar
	Catalog  *catalog.Catalog
	Logger   *slog.Logger
	// DefaultGranularity is the slot step in minutes when the request names none.
	DefaultGranularity int
}

func New(cfg Config) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if cfg.DefaultGranularity <= 0 {
		cfg.DefaultGranularity = availability.DefaultGranularityMinutes
	}
	return &Handler{
		booking:     cfg.Booking,
		calendar:    cfg.Calendar,
		catalog:     cfg.Catalog,
		logger:      cfg.Logger,
		validate:    v,
		granularity: cfg.DefaultGranularity,
	}
}

// Register mounts the routes. public wraps anonymous endpoints (rate limiting), authn wraps
// everything that needs a caller.
func (h *Handler) Register(mux *http.ServeMux, public, authn httpx.Middleware) {
	pub := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(fn, public))
	}
	priv := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, httpx.Chain(fn, authn))
	}

	pub("GET /api/v1/public/slots", h.Slots)
	pub("GET /api/v1/public/services", h.SearchServices)
	pub("GET /api/v1/public/providers/{id}/services", h.ProviderServices)
	pub("GET /api/v1/public/providers/{id}/availability", h.ProviderAvailability)
	pub("GET /api/v1/public/providers/{id}/booking-status", h.BookingStatus)

	priv("POST /api/v1/appointments", h.CreateAppointment)
	priv("GET /api/v1/appointments", h.ListAppointments)
	priv("POST /api/v1/appointments/{id}/confirm", h.transition(model.StatusConfirmed))
	priv("POST /api/v1/appointments/{id}/reject", h.transition(model.StatusRejected))
	priv("POST /api/v1/appointments/{id}/cancel", h.transition(model.StatusCancelled))

	priv("GET /api/v1/availability", h.ListAvailability)
	priv("PUT /api/v1/availability/{weekday}", h.SetAvailability)

	priv("GET /api/v1/services", h.ListServices)
	priv("POST /api/v1/services", h.CreateService)
	priv("PUT /api/v1/services/{id}", h.UpdateService)
	priv("DELETE /api/v1/services/{id}", h.DeleteService)

	priv("GET /api/v1/dashboard", h.Dashboard)
}

// actorFrom maps verified token claims onto the engine's caller. Unknown roles are refused.
func actorFrom(r *http.Request) (model.Actor, error) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return model.Actor{}, apperr.ErrForbidden
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok {
		return model.Actor{}, apperr.ErrForbidden
	}
	return model.Actor{UserID: claims.Subject, Role: role, Email: strings.TrimSpace(claims.Email)}, nil
}

func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("", "invalid json body")
	}
	return h.check(dst)
}

func (h *Handler) check(dst any) error {
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fe.Field(), validationMessage(fe))
	}
	return apperr.Validation("", err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "expected format " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(key, "must be an integer")
	}
	return n, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "expected YYYY-MM-DD")
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
