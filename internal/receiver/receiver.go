package receiver

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound reports that no message exists at or beyond an identifier.
// It ends a scan normally.
var ErrNotFound = errors.New("message not found")

// TransportError wraps a failure talking to the mail server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "mailbox " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// Envelope is the lightweight metadata inspected before deciding whether a
// message is worth a full fetch.
type Envelope struct {
	ID         uint32
	Subject    string
	Recipients []string // To and Cc addresses
	Seen       bool

	// Hole marks an identifier below the mailbox high-water mark that
	// holds no message (expunged). It never matches.
	Hole bool
}

// AddressedTo reports whether any recipient contains target,
// case-insensitively.
func (e *Envelope) AddressedTo(target string) bool {
	if target == "" {
		return false
	}
	target = strings.ToLower(target)
	for _, r := range e.Recipients {
		if strings.Contains(strings.ToLower(r), target) {
			return true
		}
	}
	return false
}

// Mailbox is one open, selected mailbox session. Calls are strictly
// sequential; implementations are not safe for concurrent use.
type Mailbox interface {
	// Envelope returns recipient metadata and flags for id, or
	// ErrNotFound when the walk has run past the last message.
	Envelope(id uint32) (*Envelope, error)

	// Fetch returns the raw RFC 5322 bytes of id. Servers may set \Seen
	// as a side effect.
	Fetch(id uint32) ([]byte, error)

	// MarkUnread clears \Seen on id.
	MarkUnread(id uint32) error

	// Close logs out and releases the connection.
	Close() error
}

// Dialer opens mailbox sessions.
type Dialer interface {
	Open(ctx context.Context) (Mailbox, error)
}
