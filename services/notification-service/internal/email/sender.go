package email

import (
	"context"
	"strings"

	"gopkg.in/gomail.v2"
)

type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SMTPSender delivers plain-text mail through an SMTP relay. Empty credentials send
// unauthenticated, which is what Mailpit expects.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@apptbook.local"
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(strings.TrimSpace(host), port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to string, subject string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(newMessage(s.from, to, subject, body))
}

func newMessage(from, to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// NoopSender drops every message; used when no SMTP host is configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string, string) error { return nil }
