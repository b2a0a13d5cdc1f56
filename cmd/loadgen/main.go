package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/perfscore/internal/loadgen"
	"github.com/okian/perfscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers         = 200
	defaultEventsPerUser = 20
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultSettle        = time.Minute
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users         = flag.Int("users", defaultUsers, "Number of distinct users")
		eventsPerUser = flag.Int("events", defaultEventsPerUser, "Outcome events per user")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle        = flag.Duration("settle", defaultSettle, "How long to wait for the queue to drain")
		seed          = flag.Uint64("seed", 1, "Task generator seed")
		team          = flag.String("team", "team-load", "Team id of generated tasks")
		verbose       = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("loadgen")

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:       *baseURL,
		Users:         *users,
		EventsPerUser: *eventsPerUser,
		Workers:       *workers,
		Timeout:       *timeout,
		Settle:        *settle,
		Seed:          *seed,
		TeamID:        *team,
	}
	if _, err := loadgen.Run(ctx, cfg, log); err != nil {
		log.Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel is called above
	}
}
