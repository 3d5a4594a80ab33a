package loadgen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// duplicateEvery controls how often a session is re-submitted verbatim to
// exercise the dedupe path: one duplicate per this many sessions.
const duplicateEvery = 20

// drainDelay gives the async pipeline time to apply queued sessions before
// standings are checked.
const drainDelay = 2 * time.Second

// Run executes a full seeding pass: generate, submit, verify.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.Duration = time.Since(stats.StartTime) }()

	c := newClient(cfg.Timeout)
	if err := checkHealth(ctx, c, cfg.BaseURL); err != nil {
		return stats, fmt.Errorf("service not reachable: %w", err)
	}

	sessions := generateSessions(cfg, stats)
	sessions = duplicateSome(sessions, duplicateEvery)

	submitSessions(ctx, cfg, sessions, stats)
	if stats.SessionsFailed > 0 && stats.SessionsSuccessful == 0 {
		return stats, fmt.Errorf("all %d submissions failed", stats.SessionsFailed)
	}

	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(drainDelay):
	}

	if err := verify(ctx, c, cfg, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// checkHealth probes the metrics endpoint, which doubles as liveness.
func checkHealth(ctx context.Context, c *client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// verify pulls the top list and re-reads the standing of every player on
// it, checking that the read side agrees with itself.
func verify(ctx context.Context, c *client, cfg *Config, stats *Stats) error {
	var top []Entry
	topURL := fmt.Sprintf("%s/leaderboard?limit=%d", cfg.BaseURL, cfg.TopN)
	if err := c.getJSON(ctx, topURL, &top); err != nil {
		return fmt.Errorf("fetch leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(top)

	for i, e := range top {
		if e.Position != i+1 {
			return fmt.Errorf("leaderboard position %d reported as %d", i+1, e.Position)
		}
		if i > 0 && e.Points > top[i-1].Points {
			return fmt.Errorf("leaderboard not sorted at position %d", e.Position)
		}

		var standing struct {
			PlayerID   string `json:"player_id"`
			Rank       string `json:"rank"`
			Points     int    `json:"points"`
			GlobalRank int    `json:"global_rank"`
		}
		rankURL := cfg.BaseURL + "/rank/" + url.PathEscape(e.PlayerID)
		if err := c.getJSON(ctx, rankURL, &standing); err != nil {
			return fmt.Errorf("fetch standing for %s: %w", e.PlayerID, err)
		}
		if standing.Points != e.Points {
			return fmt.Errorf("points mismatch for %s: board %d, standing %d", e.PlayerID, e.Points, standing.Points)
		}
		if standing.GlobalRank != e.Position {
			return fmt.Errorf("rank mismatch for %s: board %d, standing %d", e.PlayerID, e.Position, standing.GlobalRank)
		}
		stats.StandingsChecked++
	}
	return nil
}
