package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "https://www.wis-tns.org", cfg.TNS.Site)
	assert.Equal(t, "INBOX", cfg.Gmail.Label)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, float64(15), cfg.Ingest.RadiusArcsec)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[tns]
api_key = "secret"
bot_id = 12345
bot_name = "tarxiv_bot"
rate_delay = "2s"

[ingest]
workers = 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.TNS.APIKey)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.fink-portal.org", cfg.Fink.URL)
	assert.Equal(t, 3, cfg.Ingest.MaxAttempts)

	delay, err := cfg.TNSRateDelay()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, delay)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := writeConfig(t, "this is not toml = = =")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.TNS.APIKey = "" },
			wantErr: "tns.api_key",
		},
		{
			name:    "missing bot identity",
			mutate:  func(c *Config) { c.TNS.BotID = 0 },
			wantErr: "tns.bot_id",
		},
		{
			name:    "bad rate delay",
			mutate:  func(c *Config) { c.TNS.RateDelay = "fast" },
			wantErr: "tns.rate_delay",
		},
		{
			name:    "bad poll interval",
			mutate:  func(c *Config) { c.Gmail.PollInterval = "often" },
			wantErr: "gmail.poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.TNS.APIKey = "secret"
			cfg.TNS.BotID = 12345
			cfg.TNS.BotName = "tarxiv_bot"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
