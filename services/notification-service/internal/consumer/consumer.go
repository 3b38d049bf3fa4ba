package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dedup remembers handled event ids.
type Dedup interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Consumer struct {
	reader      Reader
	logger      *slog.Logger
	inbox       Dedup
	handler     Handler
	maxAttempts int
	backoff     time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
	// MaxAttempts bounds handler retries per message before it is skipped.
	MaxAttempts int
}

func New(logger *slog.Logger, inbox Dedup, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewWithReader(logger, inbox, reader, cfg.MaxAttempts, handler)
}

func NewWithReader(logger *slog.Logger, inbox Dedup, reader Reader, maxAttempts int, handler Handler) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       inbox,
		handler:     handler,
		maxAttempts: maxAttempts,
		backoff:     500 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after a message is handled or
// given up on, so a crash mid-handler redelivers it.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}

		c.consume(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) consume(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "" {
		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "inbox")
			return
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return
		}
	}

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.handler(ctxSpan, msg); err == nil {
			return
		}
		c.logger.Warn("handler error", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if attempt < c.maxAttempts && !sleep(ctx, c.backoff*time.Duration(attempt)) {
			break
		}
	}

	c.logger.Error("event dropped", "err", err,
		"event_id", meta.EventID,
		"event_type", meta.EventType,
		"aggregate_id", meta.AggregateID,
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, "handler")
	if meta.EventID != "" {
		if ferr := c.inbox.Forget(context.WithoutCancel(ctxSpan), meta.EventID); ferr != nil {
			c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
