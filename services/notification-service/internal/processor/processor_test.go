package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type memFeed struct {
	items []storage.Notification
	err   error
}

func (f *memFeed) Insert(_ context.Context, n storage.Notification) (storage.Notification, error) {
	if f.err != nil {
		return storage.Notification{}, f.err
	}
	n.ID = "n-1"
	f.items = append(f.items, n)
	return n, nil
}

type sentMail struct{ to, subject, body string }

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	s.sent = append(s.sent, sentMail{to, subject, body})
	return s.err
}

func payload(t *testing.T, req Request) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Topic: EventType, Value: raw}
}

var confirmed = Request{
	RecipientID:    "client-a",
	RecipientEmail: "a@example.com",
	Kind:           "status_changed",
	Summary:        "Haircut on Mon, 01 Jan 2024 at 10:00 is confirmed",
	AppointmentID:  "appt-1",
	ServiceName:    "Haircut",
	StartAt:        time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	Status:         "confirmed",
}

func TestHandleStoresAndEmails(t *testing.T) {
	feed, sender := &memFeed{}, &fakeSender{}
	p := New(feed, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.Handle(context.Background(), payload(t, confirmed)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "a@example.com" || sender.sent[0].subject != "Haircut confirmed" {
		t.Fatalf("unexpected mail: %+v", sender.sent)
	}
	if len(feed.items) != 1 || feed.items[0].EmailStatus != storage.EmailSent || feed.items[0].RecipientID != "client-a" {
		t.Fatalf("unexpected feed: %+v", feed.items)
	}
}

func TestHandleWithoutEmailAddress(t *testing.T) {
	feed, sender := &memFeed{}, &fakeSender{}
	p := New(feed, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := confirmed
	req.RecipientEmail = ""
	req.Kind = "booking_requested"
	if err := p.Handle(context.Background(), payload(t, req)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail, got %+v", sender.sent)
	}
	if feed.items[0].EmailStatus != storage.EmailSkipped {
		t.Fatalf("expected skipped email, got %s", feed.items[0].EmailStatus)
	}
}

func TestEmailFailureStillStoresFeed(t *testing.T) {
	feed, sender := &memFeed{}, &fakeSender{err: errors.New("smtp down")}
	p := New(feed, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.Handle(context.Background(), payload(t, confirmed)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if feed.items[0].EmailStatus != storage.EmailFailed {
		t.Fatalf("expected failed email status, got %s", feed.items[0].EmailStatus)
	}
}

func TestMalformedPayloadIsAcknowledged(t *testing.T) {
	feed := &memFeed{}
	p := New(feed, &fakeSender{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.Handle(context.Background(), kafka.Message{Value: []byte("{")}); err != nil {
		t.Fatalf("garbage must not be retried: %v", err)
	}
	if err := p.Handle(context.Background(), payload(t, Request{Kind: "status_changed"})); err != nil {
		t.Fatalf("incomplete payload must not be retried: %v", err)
	}
	if len(feed.items) != 0 {
		t.Fatalf("nothing should be stored, got %+v", feed.items)
	}
}

func TestFeedFailureIsRetried(t *testing.T) {
	p := New(&memFeed{err: errors.New("db down")}, &fakeSender{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := p.Handle(context.Background(), payload(t, confirmed)); err == nil {
		t.Fatal("expected feed error to be returned")
	}
}
