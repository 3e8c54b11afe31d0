// Command qualitynews runs the news ranking engine: the HTTP ingest/ranking
// API and the periodic Quality News sampler, wired together and started
// with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/social-protocols/rankers/internal/api"
	"github.com/social-protocols/rankers/internal/clock"
	"github.com/social-protocols/rankers/internal/config"
	"github.com/social-protocols/rankers/internal/estimator"
	"github.com/social-protocols/rankers/internal/health"
	"github.com/social-protocols/rankers/internal/ingest"
	"github.com/social-protocols/rankers/internal/ranker"
	"github.com/social-protocols/rankers/internal/sampler"
	"github.com/social-protocols/rankers/internal/scheduler"
	"github.com/social-protocols/rankers/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

func run(cfg config.Config, log *slog.Logger) error {
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	clk := clock.NewReal()

	samp := &sampler.Sampler{
		Store:     db,
		Clock:     clk,
		Estimator: estimator.Uniform{},
		PoolSize:  cfg.PoolSize,
		Log:       log,
	}

	h := health.New(3 * cronIntervalHint())

	sched, err := scheduler.New(cfg.SamplerCron, samp, h, log)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &api.Server{
		Ingest: &ingest.Ingest{Store: db},
		Ranker: &ranker.Ranker{Store: db, Clock: clk, PoolSize: cfg.PoolSize},
		Health: h,
		Log:    log,
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.LoggingHandler(os.Stdout, srv.Router()),
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case sig := <-sigc:
		log.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("scheduler shutdown error", "error", err)
	}
	return nil
}

// cronIntervalHint is the fixed window the health tracker's staleness limit
// is built from (three times this value, for the life of the process). It
// does not follow SAMPLER_CRON: with a cadence slower than three minutes,
// /health_check reports unhealthy between ticks.
func cronIntervalHint() time.Duration {
	return time.Minute
}
