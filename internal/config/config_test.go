package config_test

import (
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/verbelo/verbelo/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.ShardCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.MaxNeighborRadius, convey.ShouldEqual, 25)
		})

		convey.Convey("Then the rating defaults carry the formula constants", func() {
			convey.So(cfg.Rating.KFactor, convey.ShouldEqual, 50)
			convey.So(cfg.Rating.ExpectedPerformance, convey.ShouldEqual, 0.3)
			convey.So(cfg.Rating.ShadowRetention, convey.ShouldEqual, 0.95)
		})
	})
}

func TestConfig_Ladder(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New()

		convey.Convey("Then an empty threshold map yields the default ladder", func() {
			ladder, err := cfg.Ladder()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ladder.GradeFor(1000).String(), convey.ShouldEqual, "Gold III")
		})

		convey.Convey("Then a partial threshold map is rejected", func() {
			cfg.RankThresholds = map[string]int{"Bronze III": 0, "Bronze II": 100}
			_, err := cfg.Ladder()
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
