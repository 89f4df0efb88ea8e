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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"chamacredit/internal/amqp"
	"chamacredit/internal/cache"
	"chamacredit/internal/config"
	"chamacredit/internal/core"
	"chamacredit/internal/features"
	"chamacredit/internal/metrics"
	"chamacredit/internal/model"
	"chamacredit/internal/recommend"
	"chamacredit/internal/scoring"
	"chamacredit/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting score-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scoringCfg, err := repo.ScoringConfig(ctx)
	if err != nil {
		logger.Warn("Failed to load scoring config, using defaults", "error", err)
		scoringCfg = scoring.DefaultConfig()
	}

	extractor := features.NewExtractor(repo)

	var assessor *scoring.Assessor
	m, err := model.Load(cfg.ModelPath)
	switch {
	case err == nil:
		assessor = scoring.NewAssessor(extractor, m)
		logger.Info("Model artifact loaded", "version", m.Version, "path", cfg.ModelPath)
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Model artifact not found, scoring without model", "path", cfg.ModelPath)
	default:
		logger.Warn("Failed to load model artifact, scoring without model", "error", err, "path", cfg.ModelPath)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	orchestrator := recommend.New(repo, assessor, scoringCfg, collector)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux(registry),
	}
	go func() {
		logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "error", err)
			cancel()
		}
	}()

	// Redeliveries of an already-scored request republish the cached result
	// instead of rescoring.
	results := cache.NewLRUCache[*amqp.ScoreResultMessage](1000, 10*time.Minute)

	go func() {
		handler := func(msg *amqp.ScoreRequestMessage) error {
			result, seen := results.Get(msg.RequestID)
			if !seen {
				rec := orchestrator.Recommend(ctx, msg.MemberID, core.Money{Cents: msg.RequestedCents})

				var err error
				result, err = amqp.NewScoreResultMessage(msg.RequestID, msg.MemberID, rec)
				if err != nil {
					return fmt.Errorf("build score result: %w", err)
				}
				results.Set(msg.RequestID, result)
			}
			if err := amqpClient.PublishScoreResult(ctx, result); err != nil {
				return fmt.Errorf("publish score result: %w", err)
			}

			logger.Info("Scored request",
				"request_id", msg.RequestID,
				"member_id", msg.MemberID,
				"redelivery", seen)
			return nil
		}

		if err := amqpClient.ConsumeScoreRequests(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Score request consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Surface model rollouts in the worker's logs and metrics. The served
	// model still comes from the artifact loaded at startup.
	go func() {
		err := amqpClient.ConsumeModelTrained(ctx, func(msg *amqp.ModelTrainedMessage) {
			outcome := "trained"
			if msg.LowConfidence {
				outcome = "low_confidence"
			}
			collector.RecordTrainingRun(outcome)
			logger.Info("New model trained, restart to serve it",
				"version", msg.Version,
				"samples", msg.Samples,
				"low_confidence", msg.LowConfidence)
		})
		if err != nil && err != context.Canceled {
			logger.Warn("Training notification consumption stopped", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", "error", err)
	}

	// Give the in-flight handler a moment to finish before the deferred closes.
	time.Sleep(100 * time.Millisecond)
	logger.Info("score-worker stopped")
}

func metricsMux(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	return mux
}
