// Package config loads runtime settings for the sitesync CLI using the
// layering defaults -> JSON file -> command-line flags, where later sources
// take precedence over earlier ones.
package config

import "time"

// Config holds runtime settings for the sitesync CLI.
//
// StalePendingAfter is the grace window during which a locally-pending
// artifact absent from the remote listing is preserved by reconciliation.
// It is a tunable, not a derived constant.
type Config struct {
	// LocalDBPath is the SQLite database file backing the local store.
	LocalDBPath string

	// SitesFile is an optional JSON file with site reference data loaded
	// on startup.
	SitesFile string

	StalePendingAfter   time.Duration
	BatchSize           int
	OnlineCheckInterval time.Duration
	StartupSyncDelay    time.Duration

	// Remote document store (S3-compatible) settings.
	S3BaseEndpoint string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.LocalDBPath = "sitesync.db"
	c.StalePendingAfter = 24 * time.Hour
	c.BatchSize = 40
	c.OnlineCheckInterval = 15 * time.Second
	c.StartupSyncDelay = 5 * time.Second
	c.S3Region = "us-east-1"
	c.S3Bucket = "site-inspections"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
