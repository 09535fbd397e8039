package receiver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "notices"
	testPassword = "hunter2"
)

func notice(to, subject string) []byte {
	return []byte("From: office@iitb.ac.in\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"See you there.\r\n")
}

// startIMAP serves an in-memory INBOX and returns its address.
func startIMAP(t *testing.T) (string, int) {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(testUser, testPassword)
	require.NoError(t, user.Create("INBOX", nil))
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		InsecureAuth: true,
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// seed appends messages in order, so the n-th message gets UID n.
func seed(t *testing.T, host string, port int, msgs [][]byte, flags [][]imap.Flag) {
	t.Helper()

	c, err := imapclient.DialInsecure(net.JoinHostPort(host, strconv.Itoa(port)), nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(testUser, testPassword).Wait())

	for i, raw := range msgs {
		cmd := c.Append("INBOX", int64(len(raw)), &imap.AppendOptions{Flags: flags[i]})
		_, err := cmd.Write(raw)
		require.NoError(t, err)
		require.NoError(t, cmd.Close())
		_, err = cmd.Wait()
		require.NoError(t, err)
	}
	require.NoError(t, c.Logout().Wait())
}

// expunge removes uid from INBOX.
func expunge(t *testing.T, host string, port int, uid imap.UID) {
	t.Helper()

	c, err := imapclient.DialInsecure(net.JoinHostPort(host, strconv.Itoa(port)), nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(testUser, testPassword).Wait())
	_, err = c.Select("INBOX", nil).Wait()
	require.NoError(t, err)

	require.NoError(t, c.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close())
	require.NoError(t, c.Expunge().Close())
	require.NoError(t, c.Logout().Wait())
}

func openTestMailbox(t *testing.T, host string, port int) Mailbox {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewIMAP(host, port, testUser, testPassword, false, false, "INBOX", logger)

	mbox, err := d.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mbox.Close() })
	return mbox
}

func TestIMAPEnvelopeHolesAndEnd(t *testing.T) {
	host, port := startIMAP(t)
	seed(t, host, port,
		[][]byte{
			notice("student-notices@iitb.ac.in", "Orientation"),
			notice("hostel@iitb.ac.in", "Mess menu"),
			notice("student-notices@iitb.ac.in", "Quiz"),
		},
		[][]imap.Flag{nil, nil, {imap.FlagSeen}},
	)
	expunge(t, host, port, 2)

	mbox := openTestMailbox(t, host, port)

	env, err := mbox.Envelope(1)
	require.NoError(t, err)
	assert.False(t, env.Hole)
	assert.False(t, env.Seen)
	assert.Equal(t, "Orientation", env.Subject)
	assert.True(t, env.AddressedTo("student-notices@iitb.ac.in"))

	env, err = mbox.Envelope(2)
	require.NoError(t, err, "an expunged UID below UIDNEXT is a hole, not the end")
	assert.True(t, env.Hole)
	assert.False(t, env.AddressedTo("student-notices@iitb.ac.in"))

	env, err = mbox.Envelope(3)
	require.NoError(t, err)
	assert.True(t, env.Seen)

	_, err = mbox.Envelope(4)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mbox.Envelope(40)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIMAPFetchThenMarkUnread(t *testing.T) {
	host, port := startIMAP(t)
	seed(t, host, port,
		[][]byte{notice("student-notices@iitb.ac.in", "Hackathon")},
		[][]imap.Flag{nil},
	)

	mbox := openTestMailbox(t, host, port)

	raw, err := mbox.Fetch(1)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Hackathon")

	env, err := mbox.Envelope(1)
	require.NoError(t, err)
	assert.True(t, env.Seen, "a full fetch marks the message read")

	require.NoError(t, mbox.MarkUnread(1))

	env, err = mbox.Envelope(1)
	require.NoError(t, err)
	assert.False(t, env.Seen)

	_, err = mbox.Fetch(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIMAPOpenRejectsBadLogin(t *testing.T) {
	host, port := startIMAP(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewIMAP(host, port, testUser, "wrong", false, false, "INBOX", logger).Open(context.Background())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Op, "login")
}
