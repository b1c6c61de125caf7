package config_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/okian/tourney/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MonteCarloRuns, convey.ShouldEqual, 50_000)
			convey.So(cfg.Categories, convey.ShouldResemble, []string{"P", "T", "Z"})
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "tourney")
			convey.So(cfg.MetricsRefresh, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a config with broken deviation bounds", t, func() {
		cfg := config.New(context.Background())
		cfg.MinDev = 0.5
		cfg.MaxDev = 0.1

		convey.Convey("Then validation fails", func() {
			convey.So(cfg.Validate(), convey.ShouldWrap, config.ErrInvalidConfig)
		})
	})

	convey.Convey("Given metrics buckets that are not strictly increasing", t, func() {
		cfg := config.New(context.Background())
		cfg.MetricsBuckets = []float64{1, 5, 5}

		convey.Convey("Then the error names the setting and the key", func() {
			err := cfg.Validate()
			convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			convey.So(err.Error(), convey.ShouldEqual, "tourney setting out of range: metrics_buckets must be strictly increasing")
		})
	})

	convey.Convey("Given a zero metrics refresh interval", t, func() {
		cfg := config.New(context.Background())
		cfg.MetricsRefresh = 0

		convey.Convey("Then validation fails on metrics_refresh", func() {
			err := cfg.Validate()
			convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_refresh")
		})
	})
}
