package config

import (
	"flag"
	"os"
	"time"

	"github.com/akulikov/stashkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-t int      entry TTL, days
//	-i int      sweep interval, hours
//	-p int      listing page size
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers (days/hours) and converted to time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-i", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	entryTTL := fs.Int("t", int(config.EntryTTL.Hours())/24, "entry TTL (in days)")
	sweepInterval := fs.Int("i", int(config.SweepInterval.Hours()), "sweep interval (in hours)")

	fs.IntVar(&config.ListPageSize, "p", config.ListPageSize, "listing page size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.EntryTTL = time.Duration(*entryTTL) * 24 * time.Hour
	config.SweepInterval = time.Duration(*sweepInterval) * time.Hour
}
