// Package config loads the TOML configuration file. Every section maps to
// one adapter; defaults cover everything except credentials, which have no
// sensible default and fail validation when absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full daemon configuration.
type Config struct {
	TNS      TNSConfig      `toml:"tns"`
	Gmail    GmailConfig    `toml:"gmail"`
	Fink     FinkConfig     `toml:"fink"`
	ATLAS    ATLASConfig    `toml:"atlas"`
	ASASSN   ASASSNConfig   `toml:"asas_sn"`
	Ingest   IngestConfig   `toml:"ingest"`
	Database DatabaseConfig `toml:"database"`
}

// TNSConfig configures the Transient Name Server client.
type TNSConfig struct {
	Site      string `toml:"site"`
	APIKey    string `toml:"api_key"`
	BotID     int    `toml:"bot_id"`
	BotType   string `toml:"bot_type"`
	BotName   string `toml:"bot_name"`
	Email     string `toml:"email"`
	RateDelay string `toml:"rate_delay"`
}

// GmailConfig configures the mailbox adapter.
type GmailConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	Label           string `toml:"label"`
	PollInterval    string `toml:"poll_interval"`
}

// FinkConfig configures the ZTF broker client.
type FinkConfig struct {
	URL string `toml:"url"`
}

// ATLASConfig configures the ATLAS transient server client.
type ATLASConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// ASASSNConfig configures the SkyPatrol client.
type ASASSNConfig struct {
	URL string `toml:"url"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Workers      int     `toml:"workers"`
	MaxAttempts  int     `toml:"max_attempts"`
	RadiusArcsec float64 `toml:"radius_arcsec"`
	QueueSize    int     `toml:"queue_size"`
}

// DatabaseConfig configures the document store.
type DatabaseConfig struct {
	DataDir string `toml:"data_dir"`
}

// Default returns the configuration defaults. Credential fields stay empty.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		TNS: TNSConfig{
			Site:      "https://www.wis-tns.org",
			Email:     "no-reply@wis-tns.org",
			RateDelay: "5s",
		},
		Gmail: GmailConfig{
			CredentialsFile: filepath.Join(home, ".tarxiv", "credentials.json"),
			TokenFile:       filepath.Join(home, ".tarxiv", "token.json"),
			Label:           "INBOX",
			PollInterval:    "5s",
		},
		Fink:   FinkConfig{URL: "https://api.fink-portal.org"},
		ATLAS:  ATLASConfig{URL: "https://star.pst.qub.ac.uk/sne/atlas4"},
		ASASSN: ASASSNConfig{URL: "http://asassn-lb01.ifa.hawaii.edu:9006"},
		Ingest: IngestConfig{
			Workers:      2,
			MaxAttempts:  3,
			RadiusArcsec: 15,
			QueueSize:    256,
		},
		Database: DatabaseConfig{DataDir: filepath.Join(home, ".tarxiv", "data")},
	}
}

// Load reads the configuration file at path, applying defaults for every
// field the file leaves unset. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.TNS.APIKey == "" {
		return fmt.Errorf("tns.api_key is required")
	}
	if c.TNS.BotID == 0 || c.TNS.BotName == "" {
		return fmt.Errorf("tns.bot_id and tns.bot_name are required")
	}
	if _, err := c.TNSRateDelay(); err != nil {
		return err
	}
	if _, err := c.GmailPollInterval(); err != nil {
		return err
	}
	return nil
}

// TNSRateDelay parses the TNS rate delay.
func (c *Config) TNSRateDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.TNS.RateDelay)
	if err != nil {
		return 0, fmt.Errorf("tns.rate_delay: %w", err)
	}
	return d, nil
}

// GmailPollInterval parses the mailbox polling interval.
func (c *Config) GmailPollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Gmail.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("gmail.poll_interval: %w", err)
	}
	return d, nil
}
