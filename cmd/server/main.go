// Command server starts the classified-ad moderation API.
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

	httpserver "github.com/blausher/modsvc/internal/adapter/httpserver"
	"github.com/blausher/modsvc/internal/adapter/cache"
	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/adapter/queue/kafka"
	"github.com/blausher/modsvc/internal/adapter/repo/postgres"
	"github.com/blausher/modsvc/internal/adapter/scorer"
	"github.com/blausher/modsvc/internal/app"
	"github.com/blausher/modsvc/internal/config"
	"github.com/blausher/modsvc/internal/usecase"
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
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	listingRepo := postgres.NewListingRepo(pool)
	taskRepo := postgres.NewTaskRepo(pool)

	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		DB:          cfg.RedisDB,
		DialTimeout: cfg.RedisConnectTimeout,
		ReadTimeout: cfg.RedisReadTimeout,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", slog.Any("error", err))
		}
	}()
	predictionCache := cache.NewPredictionCache(redisClient)
	taskCache := cache.NewTaskCache(redisClient)

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientIDAPI, cfg.KafkaTopic, cfg.KafkaDLQTopic)
	if err != nil {
		slog.Error("kafka producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

	modelScorer := scorer.NewLinearScorer()
	if err := modelScorer.LoadModel(cfg.ModelPath); err != nil {
		slog.Error("scorer model load failed", slog.String("path", cfg.ModelPath), slog.Any("error", err))
		os.Exit(1)
	}

	enqueueSvc := usecase.NewEnqueueService(listingRepo, taskRepo, producer)
	readAPISvc := usecase.NewReadAPIService(taskRepo, taskCache, listingRepo, predictionCache, modelScorer)

	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(pool, redisClient, producer.Ping)

	srv := httpserver.NewServer(cfg, listingRepo, enqueueSvc, readAPISvc, dbCheck, redisCheck, kafkaCheck)
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
