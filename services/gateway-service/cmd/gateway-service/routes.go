package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type upstreams struct {
	booking      *url.URL
	notification *url.URL
}

// registerRoutes proxies the public API to the services behind the gateway. Tokens are checked
// here to shed bad traffic early; the services verify them again.
func registerRoutes(mux *http.ServeMux, up upstreams, verifier auth.TokenVerifier) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	bookingProxy := httputil.NewSingleHostReverseProxy(up.booking)
	bookingProxy.Transport = transport
	notificationProxy := httputil.NewSingleHostReverseProxy(up.notification)
	notificationProxy.Transport = transport

	requireAuth := auth.RequireBearer(verifier)
	providerOnly := func(next http.Handler) http.Handler { return requireAuth(requireRole(next, "provider")) }

	registerProxy(mux, "/api/v1/public", bookingProxy)
	registerProxy(mux, "/api/v1/appointments", requireAuth(forwardCaller(bookingProxy)))
	registerProxy(mux, "/api/v1/dashboard", requireAuth(forwardCaller(bookingProxy)))
	registerProxy(mux, "/api/v1/availability", providerOnly(forwardCaller(bookingProxy)))
	registerProxy(mux, "/api/v1/services", providerOnly(forwardCaller(bookingProxy)))
	registerProxy(mux, "/api/v1/notifications", requireAuth(forwardCaller(notificationProxy)))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// forwardCaller replaces any client-supplied identity headers with the verified ones, for
// upstream access logs.
func forwardCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			r.Header.Set("X-User-Id", claims.Subject)
			r.Header.Set("X-Role", claims.Role)
		}
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
