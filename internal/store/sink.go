package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tracyhatemice/noticecal/internal/checkpoint"
	"github.com/tracyhatemice/noticecal/internal/event"
)

// Notifier is told about events once they are durably stored.
type Notifier interface {
	Notify(events []event.Calendar) error
}

// Sink is the only writer of the event collection and the watermark.
type Sink struct {
	checkpoint *checkpoint.Store
	events     *Events
	logger     *slog.Logger

	icsPath  string
	location *time.Location
	notifier Notifier
	now      func() time.Time
}

// SinkOption customises a Sink.
type SinkOption func(*Sink)

// WithICS regenerates an iCalendar export at path after every append,
// reading zone-less times in loc.
func WithICS(path string, loc *time.Location) SinkOption {
	return func(s *Sink) {
		s.icsPath = path
		s.location = loc
	}
}

// WithNotifier reports newly stored events to n.
func WithNotifier(n Notifier) SinkOption {
	return func(s *Sink) { s.notifier = n }
}

// NewSink creates a Sink over the two durable records.
func NewSink(cp *checkpoint.Store, events *Events, logger *slog.Logger, opts ...SinkOption) *Sink {
	s := &Sink{
		checkpoint: cp,
		events:     events,
		logger:     logger,
		location:   time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flush appends newEvents to the collection and advances the watermark to
// latestSeen when it moved past prior. Events are written first; if that
// fails the watermark is left alone so the messages are scanned again
// rather than lost.
func (s *Sink) Flush(newEvents []event.Calendar, latestSeen, prior checkpoint.Watermark) error {
	if len(newEvents) > 0 {
		entries, err := s.events.Append(newEvents)
		if err != nil {
			return fmt.Errorf("flush events: %w", err)
		}
		s.logger.Info("events saved", "new", len(newEvents), "total", len(entries), "file", s.events.Path())

		if s.icsPath != "" {
			s.export(decodeAll(entries, s.logger))
		}
		if s.notifier != nil {
			if err := s.notifier.Notify(newEvents); err != nil {
				s.logger.Error("event notification failed", "error", err)
			}
		}
	}

	if latestSeen > prior {
		if err := s.checkpoint.Save(latestSeen); err != nil {
			return fmt.Errorf("flush watermark: %w", err)
		}
		s.logger.Info("watermark advanced", "from", prior, "to", latestSeen)
	}
	return nil
}

// Export regenerates the iCalendar file from the stored collection.
func (s *Sink) Export() error {
	if s.icsPath == "" {
		return fmt.Errorf("no calendar export path configured")
	}
	events, err := s.events.Calendar()
	if err != nil {
		return err
	}
	skipped, err := WriteICS(s.icsPath, events, s.location, s.now())
	if err != nil {
		return err
	}
	s.logger.Info("calendar exported", "file", s.icsPath, "events", len(events)-skipped, "skipped", skipped)
	return nil
}

func (s *Sink) export(events []event.Calendar) {
	skipped, err := WriteICS(s.icsPath, events, s.location, s.now())
	if err != nil {
		s.logger.Error("calendar export failed", "file", s.icsPath, "error", err)
		return
	}
	if skipped > 0 {
		s.logger.Warn("events left out of calendar export", "skipped", skipped)
	}
}
