package config

import (
	"flag"
	"os"
	"time"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/flagx"
)

// parseDirectoryFlags populates selected DirectoryConfig fields from
// command-line flags.
//
// Supported flags:
//
//	-d string   PostgreSQL DSN
//	-pool-min int   minimum pool connections
//	-pool-max int   maximum pool connections
//	-purge-stale-days int
//	-hard-delete-grace-hours int
func parseDirectoryFlags(cfg *DirectoryConfig) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-d", "-pool-min", "-pool-max", "-purge-stale-days", "-hard-delete-grace-hours",
	})

	fs := flag.NewFlagSet("aqm-directoryd", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.IntVar(&cfg.PoolMinSize, "pool-min", cfg.PoolMinSize, "minimum pool connections")
	fs.IntVar(&cfg.PoolMaxSize, "pool-max", cfg.PoolMaxSize, "maximum pool connections")

	purgeStaleDays := fs.Int("purge-stale-days", int(cfg.PurgeStaleAfter.Hours()/24), "unclaimed row cutoff, in days")
	hardDeleteGraceHours := fs.Int("hard-delete-grace-hours", int(cfg.HardDeleteClaimedAfter.Hours()), "claimed row grace window, in hours")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PurgeStaleAfter = time.Duration(*purgeStaleDays) * 24 * time.Hour
	cfg.HardDeleteClaimedAfter = time.Duration(*hardDeleteGraceHours) * time.Hour
}
