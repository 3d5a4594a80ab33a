// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/verbelo/verbelo/internal/adapters/store"
)

// nearbyResponse frames the window around one player.
type nearbyResponse struct {
	PlayerID string       `json:"player_id"`
	Radius   int          `json:"radius"`
	Entries  []boardEntry `json:"entries"`
}

// LeaderboardHandler handles global and nearby leaderboard requests.
type LeaderboardHandler struct {
	deps   Dependencies
	limits Limits
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, limits Limits) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, limits: limits}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.limits.MaxLeaderboardLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	top, err := h.deps.Top(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toEntries(top))
}

// HandleGetNearby handles GET /leaderboard/nearby?player_id=X&radius=N
// requests.
func (h *LeaderboardHandler) HandleGetNearby(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_nearby"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	radius, err := strconv.Atoi(r.URL.Query().Get("radius"))
	if err != nil || radius < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if radius > h.limits.MaxNeighborRadius {
		writeError(w, http.StatusBadRequest, "radius_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	board, err := h.deps.GetLeaderboard(r.Context(), playerID, radius, 0)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, nearbyResponse{
		PlayerID: playerID,
		Radius:   radius,
		Entries:  toEntries(board.Neighbors),
	})
}
