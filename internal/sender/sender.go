// Package sender mails a digest of newly extracted events over SMTP.
package sender

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/tracyhatemice/noticecal/internal/event"
)

// Sender delivers event digests through an SMTP relay.
type Sender struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	from     string
	to       string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new SMTP sender. An empty from falls back to username.
func New(host string, port int, username, password string, useTLS bool, from, to string, logger *slog.Logger) *Sender {
	if from == "" {
		from = username
	}
	return &Sender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		from:     from,
		to:       to,
		logger:   logger,
		now:      time.Now,
	}
}

// Notify sends one message listing events.
func (s *Sender) Notify(events []event.Calendar) error {
	if len(events) == 0 {
		return nil
	}
	msg, err := s.compose(events)
	if err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return err
	}
	s.logger.Info("event digest sent", "to", s.to, "events", len(events))
	return nil
}

func (s *Sender) compose(events []event.Calendar) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{{Name: "noticecal", Address: s.from}})
	h.SetAddressList("To", []*mail.Address{{Address: s.to}})
	h.SetSubject(fmt.Sprintf("%d new event(s) from student notices", len(events)))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create digest writer: %w", err)
	}
	if _, err := io.WriteString(w, Digest(events)); err != nil {
		return nil, fmt.Errorf("write digest: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close digest: %w", err)
	}
	return buf.Bytes(), nil
}

// Digest renders events as a plain-text list.
func Digest(events []event.Calendar) string {
	var sb strings.Builder
	for i, ev := range events {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "* %s\n  %s", ev.TitleOr("Untitled event"), ev.Start)
		if ev.End != "" && ev.End != ev.Start {
			fmt.Fprintf(&sb, " to %s", ev.End)
		}
		sb.WriteString("\n")
		if v := ev.ExtendedProps.Venue; v != nil && *v != "" {
			fmt.Fprintf(&sb, "  Venue: %s\n", *v)
		}
		if o := ev.ExtendedProps.OrganisingBody; o != nil && *o != "" {
			fmt.Fprintf(&sb, "  Organised by: %s\n", *o)
		}
	}
	return sb.String()
}

func (s *Sender) send(message []byte) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	var client *smtp.Client
	var err error

	if s.useTLS {
		tlsConfig := &tls.Config{ServerName: s.host}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, s.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp new client: %w", err)
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial %s: %w", addr, err)
		}
		// Try STARTTLS if available.
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: s.host}
			if err := client.StartTLS(tlsConfig); err != nil {
				s.logger.Warn("STARTTLS failed, continuing without TLS", "error", err)
			}
		}
	}
	defer client.Close()

	if s.username != "" && s.password != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(s.to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}
