// Package main provides the moderation worker application entry point.
// The worker consumes moderation requests from Kafka/Redpanda, scores each
// listing, and commits the outcome to the task store.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blausher/modsvc/internal/adapter/observability"
	"github.com/blausher/modsvc/internal/adapter/queue/kafka"
	"github.com/blausher/modsvc/internal/adapter/repo/postgres"
	"github.com/blausher/modsvc/internal/adapter/scorer"
	"github.com/blausher/modsvc/internal/config"
	"github.com/blausher/modsvc/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

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

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	listingRepo := postgres.NewListingRepo(pool)
	taskRepo := postgres.NewTaskRepo(pool)

	modelScorer := scorer.NewLinearScorer()
	if err := modelScorer.LoadModel(cfg.ModelPath); err != nil {
		slog.Error("scorer model load failed", slog.String("path", cfg.ModelPath), slog.Any("error", err))
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientIDWorker, cfg.KafkaTopic, cfg.KafkaDLQTopic)
	if err != nil {
		slog.Error("kafka producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaClientIDWorker, cfg.KafkaModGroupID, cfg.KafkaTopic, cfg.WorkerFetchTimeout)
	if err != nil {
		slog.Error("kafka consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	workerSvc := usecase.NewWorkerService(listingRepo, taskRepo, modelScorer, producer)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go consumer.Run(runCtx, workerSvc.Handle, cfg.WorkerConcurrency)

	slog.Info("worker started successfully, waiting for shutdown signal",
		slog.Int("concurrency", cfg.WorkerConcurrency))
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	cancel()
}
