package receiver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-message/mail"
	pop3client "github.com/knadh/go-pop3"
)

// POP3Dialer opens POP3/POP3S sessions addressed by message number.
// POP3 has no flags, so every message reports Seen and MarkUnread is a
// no-op.
//
// Message numbers are only stable while nothing is deleted from the
// maildrop. Deleting mail between runs renumbers later messages below a
// saved watermark, and those are never scanned.
type POP3Dialer struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	logger   *slog.Logger
}

// NewPOP3 creates a new POP3 dialer.
func NewPOP3(host string, port int, username, password string, useTLS bool, logger *slog.Logger) *POP3Dialer {
	return &POP3Dialer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		logger:   logger,
	}
}

func (d *POP3Dialer) Open(ctx context.Context) (Mailbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := pop3client.New(pop3client.Opt{
		Host:       d.host,
		Port:       d.port,
		TLSEnabled: d.useTLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, transportErr(fmt.Sprintf("connect %s:%d", d.host, d.port), err)
	}

	if err := conn.Auth(d.username, d.password); err != nil {
		conn.Quit()
		return nil, transportErr("auth "+d.username, err)
	}

	count, _, err := conn.Stat()
	if err != nil {
		conn.Quit()
		return nil, transportErr("stat", err)
	}

	d.logger.Info("mailbox opened", "host", d.host, "messages", count)
	return &pop3Mailbox{conn: conn, count: count}, nil
}

type pop3Mailbox struct {
	conn  *pop3client.Conn
	count int
}

func (m *pop3Mailbox) exists(id uint32) bool {
	return id > 0 && int(id) <= m.count
}

func (m *pop3Mailbox) Envelope(id uint32) (*Envelope, error) {
	if !m.exists(id) {
		return nil, ErrNotFound
	}
	entity, err := m.conn.Top(int(id), 0)
	if err != nil {
		return nil, transportErr(fmt.Sprintf("top %d", id), err)
	}

	h := mail.Header{Header: entity.Header}
	env := &Envelope{ID: id, Seen: true}
	env.Subject, _ = h.Subject()
	for _, key := range []string{"To", "Cc"} {
		addrs, err := h.AddressList(key)
		if err != nil {
			// Unparseable list; fall back to the raw header text.
			if raw := h.Get(key); raw != "" {
				env.Recipients = append(env.Recipients, raw)
			}
			continue
		}
		for _, a := range addrs {
			env.Recipients = append(env.Recipients, a.Address)
		}
	}
	return env, nil
}

func (m *pop3Mailbox) Fetch(id uint32) ([]byte, error) {
	if !m.exists(id) {
		return nil, ErrNotFound
	}
	buf, err := m.conn.RetrRaw(int(id))
	if err != nil {
		return nil, transportErr(fmt.Sprintf("retr %d", id), err)
	}
	return buf.Bytes(), nil
}

func (m *pop3Mailbox) MarkUnread(uint32) error { return nil }

func (m *pop3Mailbox) Close() error {
	return m.conn.Quit()
}
