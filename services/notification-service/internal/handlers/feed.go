package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/storage"
)

type Store interface {
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]storage.Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
}

type FeedHandler struct {
	store  Store
	logger *slog.Logger
}

func NewFeedHandler(store Store, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{store: store, logger: logger}
}

func (h *FeedHandler) Register(mux *http.ServeMux, authn httpx.Middleware) {
	mux.Handle("GET /api/v1/notifications", httpx.Chain(http.HandlerFunc(h.List), authn))
	mux.Handle("POST /api/v1/notifications/{id}/read", httpx.Chain(http.HandlerFunc(h.MarkRead), authn))
}

func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller", "unauthenticated")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "validation")
			return
		}
		limit = min(n, 200)
	}
	unread := r.URL.Query().Get("unread") == "true"

	items, err := h.store.ListForRecipient(r.Context(), claims.Subject, unread, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *FeedHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller", "unauthenticated")
		return
	}
	err := h.store.MarkRead(r.Context(), claims.Subject, r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "not_found")
	case err != nil:
		h.logger.Error("mark read failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
