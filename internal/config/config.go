// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"

	"github.com/verbelo/verbelo/internal/domain/rating"
)

// Store backend names accepted in Config.StoreBackend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the rating store: memory, postgres or redis.
	StoreBackend string `koanf:"store_backend"`

	// PostgresDSN is the connection string used when StoreBackend is
	// postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisAddr is the host:port used when StoreBackend is redis.
	RedisAddr string `koanf:"redis_addr"`

	// QueueSize bounds the in-memory session queue.
	QueueSize int `koanf:"queue_size"`

	// ShardCount sets the number of worker shards applying sessions.
	ShardCount int `koanf:"shard_count"`

	// DedupeSize bounds the session id dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxNeighborRadius caps GET /leaderboard/nearby?radius.
	MaxNeighborRadius int `koanf:"max_neighbor_radius"`

	// Rating holds the formula constants.
	Rating rating.Config `koanf:"rating"`

	// RankThresholds overrides the ladder, mapping grade names like
	// "Gold II" to their entry point totals. Empty means the default
	// ladder.
	RankThresholds map[string]int `koanf:"rank_thresholds"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		StoreBackend:        StoreMemory,
		QueueSize:           100_000,
		ShardCount:          runtime.NumCPU() * 4,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		MaxNeighborRadius:   25,
		Rating:              rating.DefaultConfig(),
	}
}

// Ladder builds the rank ladder the config describes.
func (c *Config) Ladder() (rating.Ladder, error) {
	if len(c.RankThresholds) == 0 {
		return rating.DefaultLadder(), nil
	}
	return rating.ParseThresholds(c.RankThresholds)
}
