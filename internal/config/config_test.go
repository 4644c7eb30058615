package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "sitesync.db", cfg.LocalDBPath)
	assert.Equal(t, 24*time.Hour, cfg.StalePendingAfter)
	assert.Equal(t, 40, cfg.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 5*time.Second, cfg.StartupSyncDelay)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "site-inspections", cfg.S3Bucket)
}
