package loadgen

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const randomFloatDivisor = 1_000_000

// Player archetype cases for session generation.
const (
	caseCasual = iota
	caseRegular
	caseSharp
	caseElite
	caseStruggling
	archetypeCount
)

// randomFloat returns a random float64 in [0,1) using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generateSessions spreads NumSessions sessions over a pool of NumPlayers
// player ids, so repeat play and rank movement both show up on the board.
func generateSessions(cfg *Config, stats *Stats) []Session {
	players := make([]string, cfg.NumPlayers)
	for i := range players {
		players[i] = "player-" + uuid.New().String()
	}

	out := make([]Session, cfg.NumSessions)
	for i := range out {
		out[i] = generateSingleSession(players[randomInt(int64(len(players)))])
	}
	stats.SessionsGenerated = len(out)
	return out
}

// generateSingleSession rolls an archetype and draws signals from its range.
func generateSingleSession(playerID string) Session {
	var (
		attempts   int
		timeTaken  float64
		accuracy   float64
		difficulty float64
	)
	switch randomInt(archetypeCount) {
	case caseCasual:
		// Slow, many guesses.
		attempts = 15 + int(randomInt(25))
		timeTaken = 1800 + randomFloat()*5400
		accuracy = 0.4 + randomFloat()*0.3
	case caseRegular:
		attempts = 8 + int(randomInt(10))
		timeTaken = 600 + randomFloat()*1800
		accuracy = 0.6 + randomFloat()*0.3
	case caseSharp:
		attempts = 5 + int(randomInt(5))
		timeTaken = 120 + randomFloat()*600
		accuracy = 0.8 + randomFloat()*0.2
	case caseElite:
		// Within the exceptional cutoff; rare.
		attempts = 1 + int(randomInt(5))
		timeTaken = 30 + randomFloat()*300
		accuracy = 0.9 + randomFloat()*0.1
	default:
		// Struggling: worst signals across the board.
		attempts = 30 + int(randomInt(40))
		timeTaken = 3600 + randomFloat()*7200
		accuracy = 0.1 + randomFloat()*0.3
	}
	difficulty = 1 + float64(randomInt(5))

	return Session{
		SessionID:  uuid.New().String(),
		PlayerID:   playerID,
		Accuracy:   accuracy,
		Attempts:   attempts,
		TimeTaken:  timeTaken,
		Difficulty: difficulty,
		TS:         time.Now().UTC().Format(time.RFC3339),
	}
}

// duplicateSome re-submits a fraction of sessions verbatim so the dedupe
// path gets exercised. Returns the augmented slice.
func duplicateSome(sessions []Session, every int) []Session {
	if every < 1 {
		return sessions
	}
	out := sessions
	for i := 0; i < len(sessions); i += every {
		out = append(out, sessions[i])
	}
	return out
}
