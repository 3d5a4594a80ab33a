// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/verbelo/verbelo/internal/adapters/store"
)

// statsResponse is the wire shape of a player's standing. The shadow
// strength stays internal and is never exposed here.
type statsResponse struct {
	PlayerID    string `json:"player_id"`
	Rank        string `json:"rank"`
	Points      int    `json:"points"`
	GlobalRank  int    `json:"global_rank"`
	GamesPlayed int    `json:"games_played"`
	LastUpdate  string `json:"last_update,omitempty"`
}

// RankHandler handles player standing requests.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{player_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	playerID := strings.TrimPrefix(r.URL.Path, "/rank/")
	if playerID == "" || strings.Contains(playerID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	stats, err := h.deps.GetStats(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := statsResponse{
		PlayerID:    stats.PlayerID,
		Rank:        stats.RankDisplay,
		Points:      stats.Points,
		GlobalRank:  stats.GlobalRank,
		GamesPlayed: stats.GamesPlayed,
	}
	if !stats.LastUpdate.IsZero() {
		resp.LastUpdate = stats.LastUpdate.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
