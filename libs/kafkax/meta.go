package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the envelope the outbox publishers attach to every message. Keys are partition
// routing only and never stand in for an event id.
type EventMeta struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
}

// Headers renders meta as the message headers ExtractEventMeta reads back. Empty aggregate
// fields are omitted.
func (m EventMeta) Headers() []kafka.Header {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(m.EventID)},
		{Key: "event_type", Value: []byte(m.EventType)},
	}
	if m.AggregateType != "" {
		headers = append(headers, kafka.Header{Key: "aggregate_type", Value: []byte(m.AggregateType)})
	}
	if m.AggregateID != "" {
		headers = append(headers, kafka.Header{Key: "aggregate_id", Value: []byte(m.AggregateID)})
	}
	return headers
}

// ExtractEventMeta falls back to the topic when no event_type header is set. A missing
// event_id stays empty so consumers skip deduplication instead of collapsing events.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:       HeaderValue(msg.Headers, "event_id"),
		EventType:     HeaderValue(msg.Headers, "event_type"),
		AggregateType: HeaderValue(msg.Headers, "aggregate_type"),
		AggregateID:   HeaderValue(msg.Headers, "aggregate_id"),
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
