package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	app "github.com/okian/tourney/internal/app"
	"github.com/okian/tourney/internal/config"
	"github.com/okian/tourney/internal/domain/format"
	"github.com/okian/tourney/internal/domain/model"
	"github.com/okian/tourney/internal/domain/rating"
	"github.com/okian/tourney/internal/domain/types"
	"github.com/okian/tourney/internal/scenario"
	"github.com/okian/tourney/pkg/logger"
	"github.com/okian/tourney/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := start(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func start() error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return run(ctx, cfg, logger.Get())
}

// run computes every configured scenario and, when a metrics address is set,
// keeps serving /metrics until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg)...)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = metricsServer(cfg.MetricsAddr)
		go func() {
			log.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server failed", logger.Error(err))
			}
		}()
		go refreshSystemMetrics(ctx, metrics.RefreshInterval())
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithRatingOptions(
			rating.WithCategories(len(cfg.Categories)),
			rating.WithMinDev(cfg.MinDev),
			rating.WithMaxDev(cfg.MaxDev),
		),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	loader := scenario.NewLoader(
		scenario.WithCategories(cfg.Categories),
		scenario.WithInitDev(cfg.InitDev),
		scenario.WithLogger(log.Named("scenario")),
		scenario.WithFormatOptions(formatOptions(cfg, log)...),
	)
	scens, err := loader.LoadAll(ctx, cfg.Scenarios)
	if err != nil {
		return err
	}

	results, err := computeAll(ctx, svc, scens)
	if err != nil {
		return err
	}
	var failed int
	for i, s := range scens {
		if !report(ctx, log, s, results[i]) {
			failed++
		}
		updateRatings(ctx, log, svc, s)
	}
	updateSystemMetrics()

	if srv != nil {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scens))
	}
	return nil
}

func formatOptions(cfg *config.Config, log logger.Logger) []format.Option {
	opts := []format.Option{
		format.WithLogger(log.Named("format")),
		format.WithProgressInterval(cfg.ProgressInterval),
		format.WithMonteCarloRuns(cfg.MonteCarloRuns),
	}
	if cfg.Seed != 0 {
		opts = append(opts, format.WithSeed(cfg.Seed))
	}
	return opts
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithRefreshInterval(cfg.MetricsRefresh),
	}
}

func metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func computeAll(ctx context.Context, svc *app.Service, scens []*scenario.Scenario) ([]model.Result, error) {
	reqs := make([]app.Request, len(scens))
	for i, s := range scens {
		reqs[i] = app.Request{Name: s.Name, Format: s.Format, Options: s.Compute}
	}
	return svc.RunBatch(ctx, reqs)
}

// report logs a scenario's standings and the likely score of every match
// that can be played next. It returns false when the computation failed.
func report(ctx context.Context, log logger.Logger, s *scenario.Scenario, res model.Result) bool { //nolint:gocritic // hugeParam: Result is read once
	if !res.OK() {
		log.Error(ctx, "scenario failed", logger.String("scenario", s.Name), logger.Error(res.Err))
		return false
	}
	log.Info(ctx, "scenario computed",
		logger.String("scenario", s.Name),
		logger.String("format", string(res.Kind)),
		logger.Duration("elapsed", res.Elapsed),
		logger.Float64("ambiguous", res.Tally.Ambiguous),
	)
	for _, row := range types.Standings(res.Tally, s.Top) {
		log.Info(ctx, "standing",
			logger.String("scenario", s.Name),
			logger.Int("rank", row.Rank),
			logger.String("name", row.Name),
			logger.Float64("win", row.Win),
			logger.Float64("top", row.Top),
			logger.Float64("expected", row.Expected),
		)
	}
	for _, line := range types.OutcomeLines(s.Format) {
		log.Info(ctx, "next match",
			logger.String("scenario", s.Name),
			logger.String("a", line.A),
			logger.String("b", line.B),
			logger.Float64("win_a", line.WinA),
			logger.String("median", fmt.Sprintf("%d-%d", line.ScoreA, line.ScoreB)),
		)
	}
	return true
}

// updateRatings applies the scenario's rating batches to its players.
func updateRatings(ctx context.Context, log logger.Logger, svc *app.Service, s *scenario.Scenario) {
	for _, b := range s.Ratings {
		before := b.Player.State.Rating[0]
		res := svc.UpdateRating(ctx, b.Player.State, b.Games)
		if res.Err != nil {
			log.Warn(ctx, "rating kept", logger.String("player", b.Player.Name), logger.Error(res.Err))
			continue
		}
		b.Player.State = res.State
		log.Info(ctx, "rating updated",
			logger.String("player", b.Player.Name),
			logger.String("method", string(res.Method)),
			logger.Float64("before", before),
			logger.Float64("after", res.State.Rating[0]),
		)
	}
}

// refreshSystemMetrics samples the process gauges every interval until ctx is done.
func refreshSystemMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
