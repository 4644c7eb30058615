package config

import (
	"flag"
	"os"
	"time"

	"github.com/fieldops/sitesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   path to the local database file
//	-s string   path to a JSON file with site reference data
//	-i int      online check interval in seconds
//	-g int      stale-pending grace window in hours
//	-b int      batch upload cap (artifacts per archive)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-i", "-g", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.LocalDBPath, "d", cfg.LocalDBPath, "path to the local database file")
	fs.StringVar(&cfg.SitesFile, "s", cfg.SitesFile, "path to a JSON file with site reference data")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	graceHours := fs.Int("g", int(cfg.StalePendingAfter.Hours()), "stale-pending grace window (in hours)")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "batch upload cap (artifacts per archive)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.StalePendingAfter = time.Duration(*graceHours) * time.Hour
}
