package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"chamacredit/internal/amqp"
	"chamacredit/internal/config"
	"chamacredit/internal/features"
	"chamacredit/internal/storage"
	"chamacredit/internal/training"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting train-model")

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

	ctx := context.Background()

	extractor := features.NewExtractor(repo)
	trainer := training.NewTrainer(repo, extractor, training.Options{
		Epochs:       cfg.TrainEpochs,
		LearningRate: cfg.TrainLearningRate,
		MinSamples:   cfg.TrainMinSamples,
		WarnSamples:  cfg.TrainWarnSamples,
	})

	result, err := trainer.Train(ctx)
	if err != nil {
		logger.Error("Training failed", "error", err)
		os.Exit(1)
	}

	if err := result.Model.Save(cfg.ModelPath); err != nil {
		logger.Error("Failed to save model artifact", "error", err, "path", cfg.ModelPath)
		os.Exit(1)
	}

	logger.Info("Model trained",
		"version", result.Model.Version,
		"samples", result.Samples,
		"low_confidence", result.LowConfidence,
		"path", cfg.ModelPath)

	// Notify downstream consumers that a new model is available. The artifact
	// is already on disk, so a publish failure is not fatal.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, skipping model notification", "error", err)
			return
		}
		defer client.Close()

		msg := &amqp.ModelTrainedMessage{
			Version:       result.Model.Version,
			Samples:       result.Samples,
			LowConfidence: result.LowConfidence,
			TrainedAt:     result.Model.TrainedAt,
		}
		if err := client.PublishModelTrained(ctx, msg); err != nil {
			logger.Warn("Failed to publish model trained notification", "error", err)
			return
		}
		logger.Info("Published model trained notification", "version", result.Model.Version)
	}
}
