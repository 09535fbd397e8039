// Package store owns the durable outputs of a scan: the events.json
// collection, its iCalendar export and, through the checkpoint package,
// the watermark.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/tracyhatemice/noticecal/internal/atomicfile"
	"github.com/tracyhatemice/noticecal/internal/event"
)

// ErrCorrupt is returned by Load when the document is not a JSON array.
var ErrCorrupt = errors.New("event collection is corrupt")

// Events is the append-only event collection stored as one JSON array.
// Entries already on disk are kept byte-for-byte, so fields written by
// other tools survive a rewrite.
type Events struct {
	path   string
	logger *slog.Logger
}

// NewEvents returns a collection backed by path.
func NewEvents(path string, logger *slog.Logger) *Events {
	return &Events{path: path, logger: logger}
}

// Path returns the backing file path.
func (e *Events) Path() string {
	return e.path
}

// Load returns the stored entries. A missing file is an empty collection.
func (e *Events) Load() ([]json.RawMessage, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read events: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, e.path, err)
	}
	return entries, nil
}

// Append adds events after the existing entries and rewrites the file. A
// document that is not a JSON array is replaced, with a warning. Any other
// read failure is returned and the file is left untouched.
func (e *Events) Append(events []event.Calendar) ([]json.RawMessage, error) {
	entries, err := e.Load()
	switch {
	case errors.Is(err, ErrCorrupt):
		e.logger.Warn("existing events are corrupt, starting a new collection; previous entries will be overwritten",
			"file", e.path, "error", err)
		entries = nil
	case err != nil:
		return nil, err
	}

	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode event: %w", err)
		}
		entries = append(entries, raw)
	}

	if err := e.write(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Calendar decodes every entry that has the calendar shape. Entries that
// do not decode are skipped with a warning.
func (e *Events) Calendar() ([]event.Calendar, error) {
	entries, err := e.Load()
	if err != nil {
		return nil, err
	}
	return decodeAll(entries, e.logger), nil
}

func (e *Events) write(entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := atomicfile.WriteFile(e.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

func decodeAll(entries []json.RawMessage, logger *slog.Logger) []event.Calendar {
	out := make([]event.Calendar, 0, len(entries))
	for i, raw := range entries {
		var ev event.Calendar
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn("skipping malformed event entry", "index", i, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}
