package config

import (
	"encoding/json"
	"os"

	"github.com/fieldops/sitesync/internal/flagx"
	"github.com/fieldops/sitesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be given either as strings like "24h" or as integer nanoseconds.
type JsonConfig struct {
	LocalDBPath         string         `json:"local_db_path"`
	SitesFile           string         `json:"sites_file"`
	StalePendingAfter   timex.Duration `json:"stale_pending_after"`
	BatchSize           int            `json:"batch_size"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	StartupSyncDelay    timex.Duration `json:"startup_sync_delay"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3Region            string         `json:"s3_region"`
	S3Bucket            string         `json:"s3_bucket"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Missing flag means no JSON is loaded. Read or
// unmarshal errors panic; intended usage is defaults -> parseJson ->
// parseFlags.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.LocalDBPath != "" {
		cfg.LocalDBPath = jc.LocalDBPath
	}
	if jc.SitesFile != "" {
		cfg.SitesFile = jc.SitesFile
	}
	if jc.StalePendingAfter.Duration != 0 {
		cfg.StalePendingAfter = jc.StalePendingAfter.Duration
	}
	if jc.BatchSize != 0 {
		cfg.BatchSize = jc.BatchSize
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.StartupSyncDelay.Duration != 0 {
		cfg.StartupSyncDelay = jc.StartupSyncDelay.Duration
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
}
