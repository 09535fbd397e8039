package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Mailbox.Username = "user"
	cfg.Mailbox.Password = "pass"
	cfg.Model.APIKey = "key"
	return cfg
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EMAIL_USERNAME", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "imap.iitb.ac.in", cfg.Mailbox.Host)
	assert.Equal(t, 993, cfg.Mailbox.Port)
	assert.True(t, cfg.Mailbox.UseTLS)
	assert.True(t, cfg.Mailbox.LegacyTLS)
	assert.Equal(t, 25, cfg.Scan.Quota())
	assert.Equal(t, 4*time.Second, cfg.Scan.Pause())
	assert.Equal(t, 2*time.Second, cfg.Scan.RetryBase())
	assert.Equal(t, 3, cfg.Scan.Attempts())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
data_dir: /var/lib/noticecal
mailbox:
  host: mail.example.org
  port: 143
  use_tls: false
  username: from-file
match:
  recipient: notices@example.org
  subject_tag: "[Notices]"
scan:
  max_per_run: 10
storage:
  ics_file: ""
`), 0o644))

	t.Setenv("EMAIL_USERNAME", "from-env")
	t.Setenv("EMAIL_PASSWORD", "secret")
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("MAX_EMAILS_PER_RUN", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mail.example.org", cfg.Mailbox.Host)
	assert.Equal(t, 143, cfg.Mailbox.Port)
	assert.False(t, cfg.Mailbox.UseTLS)
	assert.Equal(t, "INBOX", cfg.Mailbox.Folder, "unset keys keep defaults")
	assert.Equal(t, "from-env", cfg.Mailbox.Username)
	assert.Equal(t, "secret", cfg.Mailbox.Password)
	assert.Equal(t, "gk", cfg.Model.APIKey)
	assert.Equal(t, "[Notices]", cfg.Match.SubjectTag)
	assert.Equal(t, 10, cfg.Scan.Quota())
	assert.Equal(t, "/var/lib/noticecal/processed_uids.txt", cfg.CheckpointPath())
	assert.Equal(t, "", cfg.ICSPath())
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mailbox: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(mapLookup(map[string]string{
		"IMAP_SERVER":              "imap.example.org",
		"IMAP_PORT":                "1993",
		"TARGET_RECIPIENT":         "all@example.org",
		"MAX_EMAILS_PER_RUN":       "5",
		"NOTICECAL_MODEL_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY":        "ak",
		"GEMINI_API_KEY":           "ignored",
	})))
	assert.Equal(t, "imap.example.org", cfg.Mailbox.Host)
	assert.Equal(t, 1993, cfg.Mailbox.Port)
	assert.Equal(t, "all@example.org", cfg.Match.Recipient)
	assert.Equal(t, 5, cfg.Scan.Quota())
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "ak", cfg.Model.APIKey)

	err := Default().applyEnv(mapLookup(map[string]string{"MAX_EMAILS_PER_RUN": "lots"}))
	assert.ErrorContains(t, err, "MAX_EMAILS_PER_RUN")
}

func TestValidateMissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"username", func(c *Config) { c.Mailbox.Username = "" }},
		{"password", func(c *Config) { c.Mailbox.Password = "" }},
		{"model key", func(c *Config) { c.Model.APIKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrMissingCredential)
		})
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"protocol", func(c *Config) { c.Mailbox.Protocol = "mapi" }},
		{"provider", func(c *Config) { c.Model.Provider = "oracle" }},
		{"recipient", func(c *Config) { c.Match.Recipient = "" }},
		{"timezone", func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }},
		{"notify host", func(c *Config) { c.Notify.To = "me@example.org" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrMissingCredential))
		})
	}
}

func TestFillSecrets(t *testing.T) {
	cfg := Default()
	cfg.Mailbox.Password = "already"
	cfg.Notify = Notify{Host: "smtp.example.org", Username: "bot", To: "me@example.org"}

	var asked []string
	cfg.FillSecrets(func(key string) (string, error) {
		asked = append(asked, key)
		if key == "gemini-api-key" {
			return "from-keyring", nil
		}
		return "", errors.New("not found")
	})

	assert.Equal(t, "already", cfg.Mailbox.Password)
	assert.Equal(t, "from-keyring", cfg.Model.APIKey)
	assert.Equal(t, "", cfg.Notify.Password)
	assert.Equal(t, []string{"gemini-api-key", "smtp-password"}, asked)
}
