// Package classifier asks a language model whether a notice announces an
// event and, if so, to extract its fields.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tracyhatemice/noticecal/internal/event"
)

// ErrExtraction matches every *ExtractionError.
var ErrExtraction = errors.New("event extraction failed")

// ExtractionError reports that every attempt failed.
type ExtractionError struct {
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("event extraction failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Model generates a text completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier turns a notice into an event record.
type Classifier struct {
	model  Model
	retry  RetryPolicy
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithClock sets the source of "today" embedded in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New creates a Classifier. A nil model disables classification: every
// call returns no event without contacting anything.
func New(model Model, retry RetryPolicy, logger *slog.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		model:  model,
		retry:  retry,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a model is configured.
func (c *Classifier) Enabled() bool {
	return c.model != nil
}

// Classify returns the extracted record, nil when the message is not an
// event, or an *ExtractionError once retries are exhausted.
func (c *Classifier) Classify(ctx context.Context, subject, body string) (*event.Record, error) {
	if c.model == nil {
		c.logger.Debug("no model configured, skipping classification", "subject", subject)
		return nil, nil
	}

	prompt := BuildPrompt(subject, body, c.now())

	var rec *event.Record
	attempts, err := c.retry.Do(ctx, func(attempt int) error {
		text, err := c.model.Generate(ctx, prompt)
		if err != nil {
			c.logger.Warn("model call failed", "attempt", attempt, "error", err)
			return err
		}
		r, err := Parse(text)
		if err != nil {
			c.logger.Warn("model response rejected", "attempt", attempt, "error", err)
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, &ExtractionError{Attempts: attempts, Err: err}
	}

	if rec == nil {
		c.logger.Info("not an event", "subject", subject)
	}
	return rec, nil
}
