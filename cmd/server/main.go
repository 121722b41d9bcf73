// Command server starts the match engine HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobfindr/matchengine/internal/adapter/ai/openai"
	"github.com/jobfindr/matchengine/internal/adapter/httpserver"
	"github.com/jobfindr/matchengine/internal/adapter/lock/redislock"
	"github.com/jobfindr/matchengine/internal/adapter/queue/redpanda"
	"github.com/jobfindr/matchengine/internal/adapter/repo/postgres"
	"github.com/jobfindr/matchengine/internal/adapter/textextractor/local"
	"github.com/jobfindr/matchengine/internal/app"
	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/observability"
	"github.com/jobfindr/matchengine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL, cfg.ConnectInitialDelay, cfg.ConnectMaxElapsedTime)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)

	// Redis backs the per-candidate profile lock; without it the locker
	// degrades to in-process mutexes.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
	}
	locker := redislock.New(rdb, cfg.ProfileLockTTL)

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	backend := openai.New(cfg)
	extractor := local.New()

	pipeline := usecase.NewPipeline(backend, jobRepo, cfg.MatchTokenized, cfg.ScoreConcurrency, cfg.MaxSuggestions)
	profileSvc := usecase.NewProfileService(profileRepo, extractor, backend, locker, producer)

	dbCheck, redisCheck, brokerCheck := app.BuildReadinessChecks(pool, rdb, producer)
	srv := httpserver.NewServer(cfg, pipeline, profileSvc, jobRepo, profileRepo, dbCheck, redisCheck, brokerCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
