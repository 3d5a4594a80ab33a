package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/verbelo/verbelo/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	convey.Convey("Given no file and no environment overrides", t, func() {
		cfg, err := config.Load()

		convey.Convey("Then defaults come back validated", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreMemory)
		})
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("VERBELO_ADDR", ":7070")
		t.Setenv("VERBELO_QUEUE_SIZE", "42")
		t.Setenv("VERBELO_RATING__K_FACTOR", "25")

		cfg, err := config.Load()

		convey.Convey("Then env values win over defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
			convey.So(cfg.Rating.KFactor, convey.ShouldEqual, 25.0)
		})
	})
}

func TestLoad_File(t *testing.T) {
	convey.Convey("Given a YAML config file", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		yaml := []byte("addr: \":6060\"\nstore_backend: redis\nredis_addr: \"localhost:6379\"\nrating:\n  k_factor: 30\n")
		convey.So(os.WriteFile(path, yaml, 0o600), convey.ShouldBeNil)
		t.Setenv("VERBELO_CONFIG", path)

		convey.Convey("Then file values layer over defaults", func() {
			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreRedis)
			convey.So(cfg.Rating.KFactor, convey.ShouldEqual, 30.0)
		})

		convey.Convey("Then env still wins over the file", func() {
			t.Setenv("VERBELO_ADDR", ":5050")
			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
		})
	})
}

func TestLoad_Validation(t *testing.T) {
	// Plain subtests: t.Setenv scopes the override to each case.
	cases := map[string]map[string]string{
		"unknown backend":          {"VERBELO_STORE_BACKEND": "etcd"},
		"postgres without dsn":     {"VERBELO_STORE_BACKEND": "postgres"},
		"redis without addr":       {"VERBELO_STORE_BACKEND": "redis"},
		"non-positive queue":       {"VERBELO_QUEUE_SIZE": "0"},
		"retention out of range":   {"VERBELO_RATING__SHADOW_RETENTION": "1.5"},
		"non-positive board limit": {"VERBELO_MAX_LEADERBOARD_LIMIT": "0"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			if err == nil {
				t.Fatal("want validation error, got nil")
			}
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}
