package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/tourney/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1_000)
				convey.So(cfg.Seed, convey.ShouldEqual, 42)
				convey.So(cfg.MinDev, convey.ShouldEqual, 0.04)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TOURNEY_QUEUE_SIZE", "64")
			_ = os.Setenv("TOURNEY_WORKER_COUNT", "3")
			_ = os.Setenv("TOURNEY_MONTE_CARLO_RUNS", "1000")
			_ = os.Setenv("TOURNEY_CATEGORIES", "A,B")
			_ = os.Setenv("TOURNEY_METRICS_BUCKETS", "1,10,100")
			_ = os.Setenv("TOURNEY_METRICS_REFRESH", "2s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.MonteCarloRuns, convey.ShouldEqual, 1000)
				convey.So(cfg.Categories, convey.ShouldResemble, []string{"A", "B"})
				convey.So(cfg.MetricsBuckets, convey.ShouldResemble, []float64{1, 10, 100})
				convey.So(cfg.MetricsRefresh, convey.ShouldEqual, 2*time.Second)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
log_level: debug
queue_size: 500
worker_count: 24
seed: 7
metrics_namespace: league
metrics_labels:
  region: eu
scenarios:
  - a.yaml
  - b.yaml
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TOURNEY_CONFIG", tmpFile)
			_ = os.Setenv("TOURNEY_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.Seed, convey.ShouldEqual, 7)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "league")
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"region": "eu"})
				convey.So(cfg.Scenarios, convey.ShouldResemble, []string{"a.yaml", "b.yaml"})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TOURNEY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
				convey.So(err.Error(), convey.ShouldStartWith, "tourney settings unreadable: "+tmpFile)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("TOURNEY_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a zero queue size", func() {
			_ = os.Setenv("TOURNEY_QUEUE_SIZE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
				convey.So(err.Error(), convey.ShouldContainSubstring, "queue_size")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"TOURNEY_CONFIG",
		"TOURNEY_QUEUE_SIZE",
		"TOURNEY_WORKER_COUNT",
		"TOURNEY_MONTE_CARLO_RUNS",
		"TOURNEY_CATEGORIES",
		"TOURNEY_METRICS_BUCKETS",
		"TOURNEY_METRICS_REFRESH",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "tourney-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
