package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/md-rashed-zaman/apptbook/libs/auth"
)

const secret = "gateway-secret"

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func upstream(t *testing.T, name string) (*httptest.Server, *url.URL) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-Id"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return srv, u
}

func TestRoutesProxyToServices(t *testing.T) {
	_, bookingURL := upstream(t, "booking")
	_, notificationURL := upstream(t, "notification")
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{booking: bookingURL, notification: notificationURL}, auth.NewVerifier(secret, nil))

	cases := []struct {
		name     string
		method   string
		path     string
		token    string
		status   int
		upstream string
	}{
		{"public slots", http.MethodGet, "/api/v1/public/slots?provider_id=p&date=2024-01-01", "", http.StatusOK, "booking"},
		{"appointments need a token", http.MethodGet, "/api/v1/appointments", "", http.StatusUnauthorized, ""},
		{"client appointments", http.MethodGet, "/api/v1/appointments", token(t, "client-a", "client"), http.StatusOK, "booking"},
		{"client cannot manage services", http.MethodPost, "/api/v1/services", token(t, "client-a", "client"), http.StatusForbidden, ""},
		{"provider manages services", http.MethodPost, "/api/v1/services", token(t, "provider-1", "provider"), http.StatusOK, "booking"},
		{"notification feed", http.MethodGet, "/api/v1/notifications", token(t, "client-a", "client"), http.StatusOK, "notification"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, req)
			if rw.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rw.Code)
			}
			if got := rw.Header().Get("X-Upstream"); got != tc.upstream {
				t.Fatalf("expected upstream %q, got %q", tc.upstream, got)
			}
		})
	}
}

func TestForwardCallerOverridesSpoofedHeaders(t *testing.T) {
	_, bookingURL := upstream(t, "booking")
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{booking: bookingURL, notification: bookingURL}, auth.NewVerifier(secret, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "client-a", "client"))
	req.Header.Set("X-User-Id", "provider-1")
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if got := rw.Header().Get("X-Seen-User"); got != "client-a" {
		t.Fatalf("expected verified subject upstream, got %q", got)
	}
}
