// Command worker consumes resume analysis tasks from the queue, stores the
// comprehensive analysis, and emits high-match notifications.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobfindr/matchengine/internal/adapter/ai/openai"
	"github.com/jobfindr/matchengine/internal/adapter/queue/redpanda"
	"github.com/jobfindr/matchengine/internal/adapter/repo/postgres"
	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/observability"
	"github.com/jobfindr/matchengine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Worker metrics get their own port so Prometheus can scrape both
	// processes independently.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL, cfg.ConnectInitialDelay, cfg.ConnectMaxElapsedTime)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)
	notifRepo := postgres.NewNotificationRepo(pool)

	backend := openai.New(cfg)

	handler := redpanda.AnalysisHandler{
		Backend:   backend,
		Profiles:  profileRepo,
		Catalog:   jobRepo,
		Pipeline:  usecase.NewPipeline(backend, jobRepo, cfg.MatchTokenized, cfg.ScoreConcurrency, cfg.MaxSuggestions),
		Notifier:  usecase.NewNotifier(notifRepo, cfg.HighMatchThreshold, cfg.NotificationCooldown),
		Threshold: cfg.HighMatchThreshold,
	}

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "matchengine-workers", handler, cfg.ScoreConcurrency)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Error("failed to close consumer", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for tasks")
	if err := consumer.Start(ctx); err != nil && err != context.Canceled {
		slog.Error("consumer error", slog.Any("error", err))
	}
	slog.Info("worker stopped")
}
