package rating

import "math"

// attemptsScale is the numerator of the attempts normalization for
// non-exceptional games: 20/attempts, clamped to [0.1, 0.8].
const attemptsScale = 20.0

// Signals are the per-session performance inputs.
type Signals struct {
	// Accuracy is the fraction of correct actions in [0,1]. Games without
	// a notion of partial correctness report a constant 1.0.
	Accuracy float64
	// Attempts is the number of guesses taken, at least 1.
	Attempts int
	// TimeTaken is the elapsed game time in seconds, above 0.
	TimeTaken float64
	// Difficulty rates the puzzle from 1 (trivial) to 5 (hardest).
	Difficulty float64
}

// Config holds every constant of the rating formula. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	AccuracyWeight   float64 `koanf:"accuracy_weight"`
	AttemptsWeight   float64 `koanf:"attempts_weight"`
	TimeWeight       float64 `koanf:"time_weight"`
	DifficultyWeight float64 `koanf:"difficulty_weight"`

	// KFactor scales the raw delta, Elo style.
	KFactor float64 `koanf:"k_factor"`
	// ExpectedPerformance seeds the shadow strength of unseen players.
	ExpectedPerformance float64 `koanf:"expected_performance"`

	// Scores below PenaltyThreshold amplify losses; scores above
	// BonusThreshold amplify gains. The two never apply together.
	PenaltyThreshold  float64 `koanf:"penalty_threshold"`
	PenaltyMultiplier float64 `koanf:"penalty_multiplier"`
	BonusThreshold    float64 `koanf:"bonus_threshold"`
	BonusMultiplier   float64 `koanf:"bonus_multiplier"`

	// Finding the word within ExceptionalAttempts guesses applies an
	// unconditional ExceptionalMultiplier on top of the above.
	ExceptionalAttempts   int     `koanf:"exceptional_attempts"`
	ExceptionalMultiplier float64 `koanf:"exceptional_multiplier"`

	// TimeScale is the solve time, in seconds, at or below which a game
	// earns full time credit.
	TimeScale float64 `koanf:"time_scale"`

	// ShadowRetention is the weight of the old shadow strength in the
	// exponential moving average.
	ShadowRetention float64 `koanf:"shadow_retention"`
}

// DefaultConfig returns the production formula constants.
func DefaultConfig() Config {
	return Config{
		AccuracyWeight:        0,
		AttemptsWeight:        2.0,
		TimeWeight:            0.5,
		DifficultyWeight:      0,
		KFactor:               50,
		ExpectedPerformance:   0.3,
		PenaltyThreshold:      0.2,
		PenaltyMultiplier:     1.5,
		BonusThreshold:        0.8,
		BonusMultiplier:       2.0,
		ExceptionalAttempts:   5,
		ExceptionalMultiplier: 2.5,
		TimeScale:             3600,
		ShadowRetention:       0.95,
	}
}

// Model is the pure rating computation. It is stateless and safe for
// concurrent use; all session state travels through arguments.
type Model struct {
	cfg    Config
	ladder Ladder
}

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithConfig replaces the formula constants.
func WithConfig(cfg Config) Option {
	return func(m *Model) {
		m.cfg = cfg
	}
}

// WithLadder replaces the rank threshold table.
func WithLadder(l Ladder) Option {
	return func(m *Model) {
		if len(l.steps) > 0 {
			m.ladder = l
		}
	}
}

// New builds a Model with the default config and ladder.
func New(opts ...Option) *Model {
	m := &Model{
		cfg:    DefaultConfig(),
		ladder: DefaultLadder(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the formula constants in use.
func (m *Model) Config() Config { return m.cfg }

// Ladder returns the threshold table in use.
func (m *Model) Ladder() Ladder { return m.ladder }

// Baseline is the shadow strength assigned to players never seen before.
func (m *Model) Baseline() float64 { return m.cfg.ExpectedPerformance }

// PerformanceScore computes the normalized session score in [0,1].
//
// Attempts at or below the exceptional cutoff earn exactly 1.0; the jump
// down to clamp(20/attempts, 0.1, 0.8) at cutoff+1 is intentional, rewarding
// very short solves. The weighted sum can exceed 1 because the weights do
// not sum to 1; the final clamp, not weight normalization, bounds the score.
//
// Out-of-contract inputs are clamped rather than rejected: attempts below 1
// count as 1, and a non-positive time earns full time credit (the limit of
// timeScale/t as t approaches 0). Rejecting such sessions is the caller's
// responsibility.
func (m *Model) PerformanceScore(s Signals) float64 {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var normAttempts float64
	if attempts <= m.cfg.ExceptionalAttempts {
		normAttempts = 1.0
	} else {
		normAttempts = clamp(attemptsScale/float64(attempts), 0.1, 0.8)
	}

	normTime := 1.0
	if s.TimeTaken > 0 {
		normTime = math.Min(1.0, m.cfg.TimeScale/s.TimeTaken)
	}

	normDifficulty := clamp01((s.Difficulty - 1) / 4)
	accuracy := clamp01(s.Accuracy)

	score := accuracy*m.cfg.AccuracyWeight +
		normAttempts*m.cfg.AttemptsWeight +
		normTime*m.cfg.TimeWeight +
		normDifficulty*m.cfg.DifficultyWeight
	return clamp01(score)
}

// PointDelta computes the signed point change for a session against the
// player's shadow strength. The result is rounded half away from zero
// (math.Round); tests pin that convention.
func (m *Model) PointDelta(s Signals, shadow float64) int {
	score := m.PerformanceScore(s)
	delta := m.cfg.KFactor * (score - clamp01(shadow))

	// Penalty and bonus are mutually exclusive; penalty wins on overlap.
	switch {
	case score < m.cfg.PenaltyThreshold:
		delta *= m.cfg.PenaltyMultiplier
	case score > m.cfg.BonusThreshold:
		delta *= m.cfg.BonusMultiplier
	}

	// Exceptional attempts stack on top of the threshold multipliers.
	if s.Attempts <= m.cfg.ExceptionalAttempts {
		delta *= m.cfg.ExceptionalMultiplier
	}

	return int(math.Round(delta))
}

// NextShadowStrength blends a new session score into the rolling estimate.
// Both inputs are clamped to [0,1] before blending, so the result stays in
// [0,1] as well.
func (m *Model) NextShadowStrength(old, score float64) float64 {
	r := m.cfg.ShadowRetention
	return clamp01(old)*r + clamp01(score)*(1-r)
}

// GradeFor maps a point total onto the ladder.
func (m *Model) GradeFor(points int) Grade {
	return m.ladder.GradeFor(points)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
