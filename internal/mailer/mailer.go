// Package mailer sends transactional email (account verification and
// password reset) over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/mail.v2"
)

// SMTP delivers mail through one SMTP relay.
type SMTP struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTP creates an SMTP mailer. Port 465 uses implicit TLS; any other
// port upgrades with STARTTLS when the server offers it.
func NewSMTP(host string, port int, username, password, from string) *SMTP {
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 20 * time.Second
	d.SSL = port == 465
	return &SMTP{dialer: d, from: from}
}

// Send delivers one HTML message. The SMTP client has no context support,
// so ctx is only checked before dialing; the dialer timeout bounds the rest.
func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mailer: sending to %s: %w", to, err)
	}
	if err := s.dialer.DialAndSend(s.message(to, subject, htmlBody)); err != nil {
		return fmt.Errorf("mailer: sending to %s: %w", to, err)
	}
	return nil
}

func (s *SMTP) message(to, subject, htmlBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return m
}

// Log writes messages to the logger instead of sending them. It is used in
// development when SMTP_HOST is unset, so verification links can be copied
// from the server output.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log mailer.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Send logs the message and always succeeds.
func (l *Log) Send(_ context.Context, to, subject, htmlBody string) error {
	l.logger.Info("email not sent (SMTP disabled)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", htmlBody),
	)
	return nil
}
