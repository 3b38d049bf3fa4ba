package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/processor"
	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if config.Bool("DB_MIGRATE", false) {
		if err := storage.Migrate(ctx, pool); err != nil {
			logger.Error("migrate failed", "err", err)
			panic(err)
		}
	}

	var sender email.Sender = email.NoopSender{}
	if host := strings.TrimSpace(config.String("SMTP_HOST", "")); host != "" {
		sender = email.NewSMTPSender(host,
			config.Int("SMTP_PORT", 1025),
			config.String("SMTP_USER", ""),
			config.String("SMTP_PASSWORD", ""),
			config.String("SMTP_FROM", "no-reply@apptbook.local"),
		)
	} else {
		logger.Warn("SMTP_HOST not set; emails are dropped")
	}

	feed := storage.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	proc := processor.New(feed, sender, logger)
	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers:     brokers,
		GroupID:     config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:       config.String("KAFKA_CONSUME_TOPIC", processor.EventType),
		MaxAttempts: config.Int("CONSUMER_MAX_ATTEMPTS", 3),
	}, proc.Handle)
	go eventConsumer.Run(ctx)

	secret := config.String("JWT_SECRET", "")
	var jwks *auth.JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		jwks = auth.NewJWKSClient(url, time.Duration(config.Int("JWKS_CACHE_SECONDS", 300))*time.Second)
	}
	if secret == "" && jwks == nil {
		if _, err := config.RequiredString("JWT_SECRET"); err != nil {
			panic(err)
		}
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.NewFeedHandler(feed, logger).Register(mux, auth.RequireBearer(auth.NewVerifier(secret, jwks)))

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.Serve(ctx, logger, srv, 10*time.Second)
}
