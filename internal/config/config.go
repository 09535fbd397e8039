package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // calendar.timezone must resolve in minimal containers

	"go.yaml.in/yaml/v4"
)

// ErrMissingCredential is returned by validation when a login secret is
// absent. It is reported before any connection is attempted.
var ErrMissingCredential = errors.New("missing credential")

// Config is the top-level application configuration.
type Config struct {
	LogLevel    string      `yaml:"log_level"`
	DataDir     string      `yaml:"data_dir"`
	Schedule    string      `yaml:"schedule"` // cron spec used by watch
	Mailbox     Mailbox     `yaml:"mailbox"`
	Match       Match       `yaml:"match"`
	Model       Model       `yaml:"model"`
	Scan        Scan        `yaml:"scan"`
	Storage     Storage     `yaml:"storage"`
	Calendar    Calendar    `yaml:"calendar"`
	Notify      Notify      `yaml:"notify"`
	Credentials Credentials `yaml:"credentials"`
}

// Mailbox describes the monitored account.
type Mailbox struct {
	Protocol  string `yaml:"protocol"` // "imap" or "pop3"
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	UseTLS    bool   `yaml:"use_tls"`
	LegacyTLS bool   `yaml:"legacy_tls"`
	Folder    string `yaml:"folder"`
}

// Match selects which messages are worth classifying.
type Match struct {
	Recipient  string `yaml:"recipient"`
	SubjectTag string `yaml:"subject_tag"`
}

// Model selects the language model backend.
type Model struct {
	Provider string `yaml:"provider"` // "gemini" or "anthropic"
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// Scan bounds a single run.
type Scan struct {
	MaxPerRun      int `yaml:"max_per_run"`
	PauseSeconds   int `yaml:"pause_seconds"`
	MaxAttempts    int `yaml:"max_attempts"`
	RetryBaseMilli int `yaml:"retry_base_ms"`
}

// Storage names the durable records, relative to DataDir unless absolute.
type Storage struct {
	CheckpointFile string `yaml:"checkpoint_file"`
	EventsFile     string `yaml:"events_file"`
	ICSFile        string `yaml:"ics_file"`
}

// Calendar controls the iCalendar export.
type Calendar struct {
	Timezone string `yaml:"timezone"`
}

// Notify configures the optional digest mail.
type Notify struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Credentials controls where missing secrets are looked up.
type Credentials struct {
	Keyring bool `yaml:"keyring"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DataDir:  ".",
		Schedule: "*/30 * * * *",
		Mailbox: Mailbox{
			Protocol:  "imap",
			Host:      "imap.iitb.ac.in",
			Port:      993,
			UseTLS:    true,
			LegacyTLS: true,
			Folder:    "INBOX",
		},
		Match: Match{
			Recipient: "student-notices.iitb.ac.in",
		},
		Model: Model{
			Provider: "gemini",
		},
		Scan: Scan{
			MaxPerRun:      25,
			PauseSeconds:   4,
			MaxAttempts:    3,
			RetryBaseMilli: 2000,
		},
		Storage: Storage{
			CheckpointFile: "processed_uids.txt",
			EventsFile:     "events.json",
			ICSFile:        "events.ics",
		},
		Calendar: Calendar{
			Timezone: "Asia/Kolkata",
		},
	}
}

// Load reads an optional YAML file, then applies environment overrides. A
// missing file is not an error. The result is not validated; call Validate
// once secrets have been filled in.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("NOTICECAL_LOG_LEVEL", &c.LogLevel)
	str("NOTICECAL_DATA_DIR", &c.DataDir)
	str("IMAP_SERVER", &c.Mailbox.Host)
	if err := num("IMAP_PORT", &c.Mailbox.Port); err != nil {
		return err
	}
	str("EMAIL_USERNAME", &c.Mailbox.Username)
	str("EMAIL_PASSWORD", &c.Mailbox.Password)
	str("TARGET_RECIPIENT", &c.Match.Recipient)
	if err := num("MAX_EMAILS_PER_RUN", &c.Scan.MaxPerRun); err != nil {
		return err
	}
	str("NOTICECAL_MODEL_PROVIDER", &c.Model.Provider)
	switch c.Model.Provider {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.Model.APIKey)
	default:
		str("GEMINI_API_KEY", &c.Model.APIKey)
	}
	return nil
}

// FillSecrets looks up empty secrets through get, keyed by name. Lookup
// failures leave the field empty for Validate to report.
func (c *Config) FillSecrets(get func(key string) (string, error)) {
	fill := func(key string, dst *string) {
		if *dst != "" {
			return
		}
		if v, err := get(key); err == nil {
			*dst = v
		}
	}
	fill("mailbox-password", &c.Mailbox.Password)
	fill(c.Model.Provider+"-api-key", &c.Model.APIKey)
	if c.Notify.Enabled() && c.Notify.Username != "" {
		fill("smtp-password", &c.Notify.Password)
	}
}

// Validate checks the configuration. Missing secrets wrap
// ErrMissingCredential.
func (c *Config) Validate() error {
	if c.Mailbox.Username == "" {
		return fmt.Errorf("%w: mailbox username (EMAIL_USERNAME)", ErrMissingCredential)
	}
	if c.Mailbox.Password == "" {
		return fmt.Errorf("%w: mailbox password (EMAIL_PASSWORD)", ErrMissingCredential)
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("%w: %s API key", ErrMissingCredential, c.Model.Provider)
	}

	if c.Mailbox.Protocol != "imap" && c.Mailbox.Protocol != "pop3" {
		return fmt.Errorf("mailbox.protocol must be imap or pop3")
	}
	if c.Mailbox.Host == "" {
		return fmt.Errorf("mailbox.host is required")
	}
	if c.Mailbox.Port <= 0 {
		return fmt.Errorf("mailbox.port is required")
	}
	if c.Model.Provider != "gemini" && c.Model.Provider != "anthropic" {
		return fmt.Errorf("model.provider must be gemini or anthropic")
	}
	if c.Match.Recipient == "" {
		return fmt.Errorf("match.recipient is required")
	}
	if c.Scan.MaxPerRun < 0 {
		return fmt.Errorf("scan.max_per_run must not be negative")
	}
	if _, err := c.Calendar.Location(); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}
	if c.Notify.To != "" && c.Notify.Host == "" {
		return fmt.Errorf("notify.host is required when notify.to is set")
	}
	return nil
}

// Quota returns the per-run processed-message limit, defaulting to 25.
func (s *Scan) Quota() int {
	if s.MaxPerRun <= 0 {
		return 25
	}
	return s.MaxPerRun
}

// Pause returns the delay after each classified message.
func (s *Scan) Pause() time.Duration {
	if s.PauseSeconds < 0 {
		return 0
	}
	return time.Duration(s.PauseSeconds) * time.Second
}

// RetryBase returns the first backoff delay of a model call.
func (s *Scan) RetryBase() time.Duration {
	if s.RetryBaseMilli < 0 {
		return 0
	}
	return time.Duration(s.RetryBaseMilli) * time.Millisecond
}

// Attempts returns the model call attempt limit, defaulting to 3.
func (s *Scan) Attempts() int {
	if s.MaxAttempts <= 0 {
		return 3
	}
	return s.MaxAttempts
}

// Location resolves the export timezone.
func (c *Calendar) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Enabled reports whether digest mail is configured.
func (n *Notify) Enabled() bool {
	return n.To != "" && n.Host != ""
}

// CheckpointPath returns the watermark file location.
func (c *Config) CheckpointPath() string { return c.resolve(c.Storage.CheckpointFile) }

// EventsPath returns the events.json location.
func (c *Config) EventsPath() string { return c.resolve(c.Storage.EventsFile) }

// ICSPath returns the iCalendar export location, or "" when disabled.
func (c *Config) ICSPath() string {
	if c.Storage.ICSFile == "" {
		return ""
	}
	return c.resolve(c.Storage.ICSFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
