package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/tracyhatemice/noticecal/internal/checkpoint"
	"github.com/tracyhatemice/noticecal/internal/classifier"
	"github.com/tracyhatemice/noticecal/internal/config"
	"github.com/tracyhatemice/noticecal/internal/credential"
	"github.com/tracyhatemice/noticecal/internal/receiver"
	"github.com/tracyhatemice/noticecal/internal/scanner"
	"github.com/tracyhatemice/noticecal/internal/sender"
	"github.com/tracyhatemice/noticecal/internal/store"
)

func keyringDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, ".keyring")
}

// prepare completes secrets from the keyring when enabled and validates the
// result.
func prepare(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Credentials.Keyring {
		ring := credential.New(keyringDir(cfg))
		cfg.FillSecrets(ring.Get)
		logger.Debug("secrets looked up in keyring")
	}
	return cfg.Validate()
}

func newDialer(cfg *config.Config, logger *slog.Logger) (receiver.Dialer, error) {
	mb := cfg.Mailbox
	switch mb.Protocol {
	case "pop3":
		return receiver.NewPOP3(mb.Host, mb.Port, mb.Username, mb.Password, mb.UseTLS, logger), nil
	case "imap":
		return receiver.NewIMAP(mb.Host, mb.Port, mb.Username, mb.Password, mb.UseTLS, mb.LegacyTLS, mb.Folder, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", mb.Protocol)
	}
}

func newModel(cfg *config.Config) (classifier.Model, error) {
	m := cfg.Model
	switch m.Provider {
	case "anthropic":
		return classifier.NewAnthropic(m.APIKey, m.Name, m.BaseURL), nil
	case "gemini":
		return classifier.NewGemini(m.APIKey, m.Name, m.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", m.Provider)
	}
}

func newSink(cfg *config.Config, logger *slog.Logger) (*store.Sink, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, fmt.Errorf("calendar timezone: %w", err)
	}

	var opts []store.SinkOption
	if path := cfg.ICSPath(); path != "" {
		opts = append(opts, store.WithICS(path, loc))
	}
	if cfg.Notify.Enabled() {
		n := cfg.Notify
		opts = append(opts, store.WithNotifier(sender.New(n.Host, n.Port, n.Username, n.Password, n.UseTLS, n.From, n.To, logger)))
	}

	return store.NewSink(
		checkpoint.NewStore(cfg.CheckpointPath(), logger),
		store.NewEvents(cfg.EventsPath(), logger),
		logger,
		opts...,
	), nil
}

func newScanner(cfg *config.Config, logger *slog.Logger) (*scanner.Scanner, error) {
	dialer, err := newDialer(cfg, logger)
	if err != nil {
		return nil, err
	}
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := newSink(cfg, logger)
	if err != nil {
		return nil, err
	}

	retry := classifier.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Scan.Attempts()
	retry.BaseDelay = cfg.Scan.RetryBase()

	return scanner.New(
		dialer,
		checkpoint.NewStore(cfg.CheckpointPath(), logger),
		classifier.New(model, retry, logger),
		sink,
		scanner.Options{
			Recipient:  cfg.Match.Recipient,
			SubjectTag: cfg.Match.SubjectTag,
			Quota:      cfg.Scan.Quota(),
			Pause:      cfg.Scan.Pause(),
		},
		logger,
	), nil
}
