package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/verbelo/verbelo/internal/loadgen"
)

const (
	defaultNumSessions = 10000
	defaultNumPlayers  = 1000
	defaultTopN        = 50
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSessions = flag.Int("sessions", defaultNumSessions, "Number of sessions to generate and submit")
		numPlayers  = flag.Int("players", defaultNumPlayers, "Number of distinct players to spread sessions over")
		topN        = flag.Int("top", defaultTopN, "Number of top entries to verify afterwards")
		workers     = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:     *baseURL,
		NumSessions: *numSessions,
		NumPlayers:  *numPlayers,
		TopN:        *topN,
		Workers:     *workers,
		Timeout:     *timeout,
		Verbose:     *verbose,
	}

	stats, err := loadgen.Run(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("seeding failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("generated:  %d\n", stats.SessionsGenerated)
	fmt.Printf("submitted:  %d (ok %d, duplicate %d, failed %d)\n",
		stats.SessionsSubmitted, stats.SessionsSuccessful, stats.SessionsDuplicate, stats.SessionsFailed)
	fmt.Printf("verified:   %d standings across %d board entries\n",
		stats.StandingsChecked, stats.LeaderboardEntries)
	fmt.Printf("duration:   %s\n", stats.Duration.Round(time.Millisecond))
}
