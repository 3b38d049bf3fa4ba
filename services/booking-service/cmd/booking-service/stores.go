package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage/memstore"
)

type stores struct {
	ledger    ledger.Store
	windows   availability.WindowStore
	catalog   catalog.Store
	notifier  notify.Dispatcher
	publisher *outbox.Publisher
	checks    []runtime.ReadyCheck
	close     func()
}

// openStores selects the backend named by STORE. "memory" keeps everything in process and
// only logs notifications.
func openStores(ctx context.Context, logger *slog.Logger) (*stores, error) {
	switch kind := strings.ToLower(config.String("STORE", "postgres")); kind {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memstore.New()
		return &stores{
			ledger:   mem,
			windows:  mem,
			catalog:  mem,
			notifier: notify.NewLogDispatcher(logger),
			close:    func() {},
		}, nil
	case "postgres":
		return openPostgres(ctx, logger)
	default:
		return nil, fmt.Errorf("STORE must be postgres or memory (got %q)", kind)
	}
}

func openPostgres(ctx context.Context, logger *slog.Logger) (*stores, error) {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	if config.Bool("DB_MIGRATE", false) {
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied")
	}

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()
	brokers := config.String("KAFKA_BROKERS", "")
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(kafkax.SplitBrokers(brokers)) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	return &stores{
		ledger:   repo,
		windows:  repo,
		catalog:  repo,
		notifier: notify.NewOutboxDispatcher(pool, outboxRepo),
		publisher: outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		}),
		checks: checks,
		close:  pool.Close,
	}, nil
}
