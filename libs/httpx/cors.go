package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures browser access. Origins are exact ("https://app.example"), a
// subdomain pattern ("https://*.example.com") or "*".
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// exposedHeaders lets browser clients read request ids and rate-limit state.
var exposedHeaders = strings.Join([]string{
	RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
}, ", ")

type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: map[string]struct{}{}}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch {
		case o == "":
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			m.suffixes = append(m.suffixes, wildcardOrigin{scheme: scheme + "://", suffix: host})
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) empty() bool {
	return !m.any && len(m.exact) == 0 && len(m.suffixes) == 0
}

func (m originMatcher) match(origin string) bool {
	o := strings.ToLower(origin)
	if _, ok := m.exact[o]; ok {
		return true
	}
	for _, w := range m.suffixes {
		rest, ok := strings.CutPrefix(o, w.scheme)
		if ok && strings.HasSuffix(rest, w.suffix) && len(rest) > len(w.suffix) {
			return true
		}
	}
	return m.any
}

// WithCORS answers preflights and decorates responses for allowed origins. No configured
// origins disables it. Preflights from other origins get 403.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := newOriginMatcher(cfg.AllowedOrigins)
	if origins.empty() {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := strings.Join(normalizeList(cfg.AllowedMethods), ", ")
	allowHeaders := strings.Join(normalizeList(cfg.AllowedHeaders), ", ")
	maxAge := ""
	if s := int(cfg.MaxAge.Seconds()); s > 0 {
		maxAge = strconv.Itoa(s)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if !origins.match(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// A bare "*" cannot be combined with credentials, so the origin is echoed instead.
			if origins.any && !cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if allowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
