package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPDialer opens IMAP/IMAPS sessions addressed by UID.
type IMAPDialer struct {
	host      string
	port      int
	username  string
	password  string
	useTLS    bool
	legacyTLS bool
	folder    string
	logger    *slog.Logger
}

// NewIMAP creates a new IMAP dialer.
func NewIMAP(host string, port int, username, password string, useTLS, legacyTLS bool, folder string, logger *slog.Logger) *IMAPDialer {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPDialer{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		useTLS:    useTLS,
		legacyTLS: legacyTLS,
		folder:    folder,
		logger:    logger,
	}
}

// Open connects, logs in and selects the folder read-write, since restoring
// \Seen needs STORE.
func (d *IMAPDialer) Open(ctx context.Context) (Mailbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(d.host, fmt.Sprintf("%d", d.port))

	var client *imapclient.Client
	var err error

	if d.useTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: tlsConfig(d.host, d.legacyTLS),
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, transportErr("connect "+addr, err)
	}

	if err := client.Login(d.username, d.password).Wait(); err != nil {
		client.Close()
		return nil, transportErr("login "+d.username, err)
	}

	data, err := client.Select(d.folder, &imap.SelectOptions{ReadOnly: false}).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		client.Close()
		return nil, transportErr("select "+d.folder, err)
	}

	d.logger.Info("mailbox selected",
		"host", d.host,
		"folder", d.folder,
		"messages", data.NumMessages,
		"uid_next", data.UIDNext,
	)
	return &imapMailbox{client: client, uidNext: uint32(data.UIDNext)}, nil
}

type imapMailbox struct {
	client  *imapclient.Client
	uidNext uint32
}

func (m *imapMailbox) Envelope(id uint32) (*Envelope, error) {
	bufs, err := m.client.Fetch(imap.UIDSetNum(imap.UID(id)), &imap.FetchOptions{
		UID:      true,
		Envelope: true,
		Flags:    true,
	}).Collect()
	if err != nil {
		return nil, transportErr(fmt.Sprintf("fetch envelope %d", id), err)
	}
	if len(bufs) == 0 {
		if m.uidNext != 0 && id < m.uidNext {
			return &Envelope{ID: id, Hole: true}, nil
		}
		return nil, ErrNotFound
	}

	buf := bufs[0]
	env := &Envelope{ID: id}
	if buf.Envelope != nil {
		env.Subject = buf.Envelope.Subject
		for _, a := range buf.Envelope.To {
			env.Recipients = append(env.Recipients, a.Addr())
		}
		for _, a := range buf.Envelope.Cc {
			env.Recipients = append(env.Recipients, a.Addr())
		}
	}
	for _, f := range buf.Flags {
		if f == imap.FlagSeen {
			env.Seen = true
		}
	}
	return env, nil
}

func (m *imapMailbox) Fetch(id uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{}
	bufs, err := m.client.Fetch(imap.UIDSetNum(imap.UID(id)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, transportErr(fmt.Sprintf("fetch body %d", id), err)
	}
	if len(bufs) == 0 {
		return nil, ErrNotFound
	}
	return bufs[0].FindBodySection(section), nil
}

func (m *imapMailbox) MarkUnread(id uint32) error {
	err := m.client.Store(imap.UIDSetNum(imap.UID(id)), &imap.StoreFlags{
		Op:     imap.StoreFlagsDel,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	return transportErr(fmt.Sprintf("store -\\Seen %d", id), err)
}

func (m *imapMailbox) Close() error {
	_ = m.client.Logout().Wait()
	return m.client.Close()
}
