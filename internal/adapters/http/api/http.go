// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/verbelo/verbelo/internal/adapters/store"
	service "github.com/verbelo/verbelo/internal/app"
	"github.com/verbelo/verbelo/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Idempotency over session ids.
	SeenAndRecord(ctx context.Context, sessionID string) bool
	Unrecord(ctx context.Context, sessionID string)

	// Enqueue pushes a session for async rating. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, s model.Session) bool

	// Read operations expose player standings.
	GetStats(ctx context.Context, playerID string) (service.Stats, error)
	GetLeaderboard(ctx context.Context, playerID string, radius, topN int) (service.Leaderboard, error)
	Top(ctx context.Context, n int) ([]store.Position, error)
	RuntimeStats(ctx context.Context) map[string]any
}

// Limits caps the query parameters handlers accept.
type Limits struct {
	MaxLeaderboardLimit int
	MaxNeighborRadius   int
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	rankHandler        *RankHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, limits Limits) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		rankHandler:        NewRankHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, limits),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandlePostSession, "sessions"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard/nearby", MetricsMiddleware(s.leaderboardHandler.HandleGetNearby, "leaderboard_nearby"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

// sessionRequest mirrors the JSON schema for POST /sessions.
type sessionRequest struct {
	SessionID  string  `json:"session_id"`
	PlayerID   string  `json:"player_id"`
	Accuracy   float64 `json:"accuracy"`
	Attempts   int     `json:"attempts"`
	TimeTaken  float64 `json:"time_taken"`
	Difficulty float64 `json:"difficulty"`
	TS         string  `json:"ts"`
}

func (s sessionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(s.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(s.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, s.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return s.session().Validate()
}

func (s sessionRequest) session() model.Session {
	ts, _ := time.Parse(time.RFC3339, s.TS)
	return model.Session{
		SessionID:  s.SessionID,
		PlayerID:   s.PlayerID,
		Accuracy:   s.Accuracy,
		Attempts:   s.Attempts,
		TimeTaken:  s.TimeTaken,
		Difficulty: s.Difficulty,
		TS:         ts,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// boardEntry is the wire shape of one leaderboard row.
type boardEntry struct {
	Position int    `json:"position"`
	PlayerID string `json:"player_id"`
	Rank     string `json:"rank"`
	Points   int    `json:"points"`
}

func toEntries(in []store.Position) []boardEntry {
	out := make([]boardEntry, 0, len(in))
	for _, p := range in {
		out = append(out, boardEntry{
			Position: p.Position,
			PlayerID: p.PlayerID,
			Rank:     p.Grade.String(),
			Points:   p.Points,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
