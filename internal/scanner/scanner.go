// Package scanner walks the mailbox from the stored watermark, classifies
// notices addressed to the target recipient and hands the results to the
// sink once per run.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tracyhatemice/noticecal/internal/checkpoint"
	"github.com/tracyhatemice/noticecal/internal/classifier"
	"github.com/tracyhatemice/noticecal/internal/event"
	"github.com/tracyhatemice/noticecal/internal/message"
	"github.com/tracyhatemice/noticecal/internal/receiver"
)

// State is where a run ended up.
type State int

const (
	Idle State = iota
	Scanning
	Drained      // walked past the last message
	QuotaReached // processed the per-run maximum
	Interrupted  // context cancelled
	Failed       // transport error mid-walk
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Drained:
		return "drained"
	case QuotaReached:
		return "quota_reached"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Checkpoint provides the watermark a run starts from.
type Checkpoint interface {
	Load() checkpoint.Watermark
}

// Classifier extracts an event from a decoded notice.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*event.Record, error)
}

// Sink persists a run's results.
type Sink interface {
	Flush(newEvents []event.Calendar, latestSeen, prior checkpoint.Watermark) error
}

// Options tune a run.
type Options struct {
	Recipient  string        // matched against To and Cc
	SubjectTag string        // optional; matched against the subject
	Quota      int           // matching messages processed per run
	Pause      time.Duration // wait after each processed message

	// Sleep waits between messages. Nil means a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Report summarises a run.
type Report struct {
	State      State
	Prior      checkpoint.Watermark
	LatestSeen checkpoint.Watermark
	Inspected  int // envelopes looked at
	Processed  int // matching messages handled
	Events     []event.Calendar
	Failures   int // per-message decode or extraction failures
	Dropped    int // events without a usable start date
	Err        error
}

// Scanner runs incremental scans.
type Scanner struct {
	dialer     receiver.Dialer
	checkpoint Checkpoint
	classifier Classifier
	sink       Sink
	opts       Options
	logger     *slog.Logger
}

// New creates a Scanner.
func New(
	dialer receiver.Dialer,
	cp Checkpoint,
	cls Classifier,
	sink Sink,
	opts Options,
	logger *slog.Logger,
) *Scanner {
	if opts.Quota <= 0 {
		opts.Quota = 25
	}
	if opts.Sleep == nil {
		opts.Sleep = classifier.Sleep
	}
	return &Scanner{
		dialer:     dialer,
		checkpoint: cp,
		classifier: cls,
		sink:       sink,
		opts:       opts,
		logger:     logger,
	}
}

// Run performs one scan. A mailbox that cannot be opened is returned as an
// error with nothing flushed. Once the mailbox is open, whatever the walk
// accumulated is flushed on every exit path; a transport failure during
// the walk is reported in Report.Err rather than returned.
func (s *Scanner) Run(ctx context.Context) (rep *Report, err error) {
	prior := s.checkpoint.Load()
	rep = &Report{State: Idle, Prior: prior, LatestSeen: prior}
	s.logger.Info("scan starting", "watermark", prior, "quota", s.opts.Quota, "recipient", s.opts.Recipient)

	mbox, err := s.dialer.Open(ctx)
	if err != nil {
		return rep, fmt.Errorf("open mailbox: %w", err)
	}
	defer func() {
		if cerr := mbox.Close(); cerr != nil {
			s.logger.Warn("mailbox close failed", "error", cerr)
		}
	}()

	defer func() {
		if ferr := s.sink.Flush(rep.Events, rep.LatestSeen, prior); ferr != nil {
			s.logger.Error("flush failed", "error", ferr)
			err = errors.Join(err, ferr)
		}
		s.logger.Info("scan finished",
			"state", rep.State,
			"inspected", rep.Inspected,
			"processed", rep.Processed,
			"events", len(rep.Events),
			"watermark", rep.LatestSeen,
		)
	}()

	s.walk(ctx, mbox, rep)
	if rep.Err != nil {
		s.logger.Error("scan aborted by transport error", "uid", uint32(rep.LatestSeen)+1, "error", rep.Err)
	}
	return rep, nil
}

func (s *Scanner) walk(ctx context.Context, mbox receiver.Mailbox, rep *Report) {
	rep.State = Scanning
	cursor := uint32(rep.Prior) + 1

	advance := func() {
		cursor++
		rep.LatestSeen = checkpoint.Watermark(cursor - 1)
	}

	for rep.Processed < s.opts.Quota {
		if ctx.Err() != nil {
			rep.State = Interrupted
			return
		}

		env, err := mbox.Envelope(cursor)
		if errors.Is(err, receiver.ErrNotFound) {
			rep.State = Drained
			return
		}
		if err != nil {
			rep.State, rep.Err = Failed, err
			return
		}
		rep.Inspected++

		if !s.matches(env) {
			s.logger.Debug("skipping message", "uid", cursor, "hole", env.Hole)
			advance()
			continue
		}
		s.logger.Debug("matched", "uid", cursor)

		raw, err := mbox.Fetch(cursor)
		if errors.Is(err, receiver.ErrNotFound) {
			s.logger.Warn("message vanished before fetch", "uid", cursor)
			advance()
			continue
		}
		if err != nil {
			rep.State, rep.Err = Failed, err
			return
		}

		out := s.extract(ctx, cursor, raw)

		var restoreErr error
		if !env.Seen {
			restoreErr = mbox.MarkUnread(cursor)
		}

		if ctx.Err() != nil {
			// Nothing from this message is kept; it stays above the
			// watermark for the next run.
			rep.State = Interrupted
			return
		}

		rep.Processed++
		out.apply(rep)
		advance()

		if restoreErr != nil {
			rep.State, rep.Err = Failed, restoreErr
			return
		}

		if rep.Processed < s.opts.Quota {
			s.logger.Debug("pausing", "delay", s.opts.Pause)
			if err := s.opts.Sleep(ctx, s.opts.Pause); err != nil {
				rep.State = Interrupted
				return
			}
		}
	}
	rep.State = QuotaReached
}

func (s *Scanner) matches(env *receiver.Envelope) bool {
	if env.Hole {
		return false
	}
	if env.AddressedTo(s.opts.Recipient) {
		return true
	}
	if s.opts.SubjectTag == "" {
		return false
	}
	subject := strings.ToLower(message.DecodeHeader(env.Subject))
	return strings.Contains(subject, strings.ToLower(s.opts.SubjectTag))
}

// outcome is what one message contributed. It is applied to the report
// only once the message counts as processed.
type outcome struct {
	event   *event.Calendar
	failed  bool
	dropped bool
}

func (o outcome) apply(rep *Report) {
	if o.failed {
		rep.Failures++
	}
	if o.dropped {
		rep.Dropped++
	}
	if o.event != nil {
		rep.Events = append(rep.Events, *o.event)
	}
}

// extract decodes and classifies one message. Failures stay local to the
// message.
func (s *Scanner) extract(ctx context.Context, uid uint32, raw []byte) outcome {
	decoded, err := message.Decode(raw)
	if err != nil {
		s.logger.Warn("cannot decode message, skipping", "uid", uid, "error", err)
		return outcome{failed: true}
	}
	if decoded.Body == "" {
		s.logger.Info("no plain text body, skipping", "uid", uid, "subject", decoded.Subject)
		return outcome{}
	}

	s.logger.Debug("classifying", "uid", uid, "subject", decoded.Subject)
	rec, err := s.classifier.Classify(ctx, decoded.Subject, decoded.Body)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("classification interrupted", "uid", uid, "error", err)
			return outcome{}
		}
		s.logger.Error("classification failed, treating as no event", "uid", uid, "subject", decoded.Subject, "error", err)
		return outcome{failed: true}
	}
	if rec == nil {
		return outcome{}
	}

	cal, err := rec.ToCalendar()
	if err != nil {
		s.logger.Warn("dropping extracted event", "uid", uid, "subject", decoded.Subject, "error", err)
		return outcome{dropped: true}
	}
	s.logger.Info("event extracted", "uid", uid, "title", cal.TitleOr(""), "start", cal.Start)
	return outcome{event: &cal}
}
