package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestEventMetaRoundTrip(t *testing.T) {
	meta := EventMeta{
		EventID:       "e-1",
		EventType:     "booking.notification.requested.v1",
		AggregateType: "appointment",
		AggregateID:   "a-1",
	}
	got := ExtractEventMeta(kafka.Message{Headers: meta.Headers()})
	if got != meta {
		t.Fatalf("expected %+v, got %+v", meta, got)
	}

	fallback := ExtractEventMeta(kafka.Message{Key: []byte("a-1"), Topic: "topic-a"})
	if fallback.EventID != "" || fallback.EventType != "topic-a" {
		t.Fatalf("message key must not become the event id: %+v", fallback)
	}
	if n := len(EventMeta{EventID: "e-2", EventType: "t"}.Headers()); n != 2 {
		t.Fatalf("expected empty aggregate headers omitted, got %d headers", n)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestTraceHeadersPropagate(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e-1", EventType: "t"}.Headers())
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent header missing: %v", headers)
	}

	out := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if out.TraceID() != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, out.TraceID())
	}
}
