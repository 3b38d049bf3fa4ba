package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/limiter"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLoggerWithLevel(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	st, err := openStores(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer st.close()

	confirmedCap := config.Int("BOOKING_CONFIRMED_CAP", limiter.FreeTierMaxConfirmed)
	led := ledger.New(st.ledger, confirmedCap)
	cal := availability.NewCalendar(st.windows)
	cat := catalog.New(st.catalog)
	granularity := config.Int("SLOT_GRANULARITY_MINUTES", availability.DefaultGranularityMinutes)
	svc := booking.New(booking.Deps{
		Calendar:    cal,
		Slots:       availability.NewGenerator(st.windows, led),
		Ledger:      led,
		Limiter:     limiter.New(led, confirmedCap),
		Catalog:     cat,
		Notifier:    st.notifier,
		Logger:      logger,
		Granularity: granularity,
	})
	if st.publisher != nil {
		go st.publisher.Run(ctx)
	}

	verifier, err := newVerifier()
	if err != nil {
		panic(err)
	}

	checks := st.checks
	public := httpx.Middleware(nil)
	if perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120); perMinute > 0 {
		var rl httpx.Limiter = httpx.NewMemoryRateLimiter(perMinute, time.Minute)
		if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: config.String("REDIS_PASSWORD", ""),
				DB:       config.Int("REDIS_DB", 0),
			})
			defer func() { _ = rdb.Close() }()
			rl = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, service+":rl")
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		}
		public = httpx.RateLimit(rl, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(handlers.Config{
		Booking:            svc,
		Calendar:           cal,
		Catalog:            cat,
		Logger:             logger,
		DefaultGranularity: granularity,
	}).Register(mux, public, auth.RequireBearer(verifier))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.Serve(ctx, logger, srv, 10*time.Second)
}

// newVerifier accepts HS256 tokens signed with JWT_SECRET and, when JWKS_URL is set, RS256
// tokens from the identity provider's key set. At least one must be configured.
func newVerifier() (*auth.Verifier, error) {
	secret := config.String("JWT_SECRET", "")
	var jwks *auth.JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		ttl := time.Duration(config.Int("JWKS_CACHE_SECONDS", 300)) * time.Second
		jwks = auth.NewJWKSClient(url, ttl)
	}
	if secret == "" && jwks == nil {
		_, err := config.RequiredString("JWT_SECRET")
		return nil, err
	}
	return auth.NewVerifier(secret, jwks), nil
}
