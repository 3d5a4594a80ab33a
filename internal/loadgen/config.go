// Package loadgen generates synthetic game sessions and drives them
// through the HTTP API, then spot-checks the resulting standings.
package loadgen

import "time"

// Config holds configuration for one seeding run.
type Config struct {
	BaseURL     string        // base URL of the service
	NumSessions int           // number of sessions to generate
	NumPlayers  int           // pool of player ids sessions are spread over
	TopN        int           // top entries to fetch afterwards
	Workers     int           // concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	Verbose     bool          // enable per-request logging
}

// Session is the wire payload for POST /sessions.
type Session struct {
	SessionID  string  `json:"session_id"`
	PlayerID   string  `json:"player_id"`
	Accuracy   float64 `json:"accuracy"`
	Attempts   int     `json:"attempts"`
	TimeTaken  float64 `json:"time_taken"`
	Difficulty float64 `json:"difficulty"`
	TS         string  `json:"ts"`
}

// Entry is one leaderboard row as returned by the API.
type Entry struct {
	Position int    `json:"position"`
	PlayerID string `json:"player_id"`
	Rank     string `json:"rank"`
	Points   int    `json:"points"`
}

// AckResponse is the response from session submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats accumulates counters for one run.
type Stats struct {
	SessionsGenerated  int
	SessionsSubmitted  int
	SessionsSuccessful int
	SessionsDuplicate  int
	SessionsFailed     int
	StandingsChecked   int
	LeaderboardEntries int
	StartTime          time.Time
	Duration           time.Duration
}
