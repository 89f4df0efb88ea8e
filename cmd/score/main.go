package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"chamacredit/internal/amqp"
	"chamacredit/internal/config"
	"chamacredit/internal/core"
	"chamacredit/internal/features"
	"chamacredit/internal/model"
	"chamacredit/internal/recommend"
	"chamacredit/internal/scoring"
	"chamacredit/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	memberID := flag.Int64("member", 0, "member ID to score")
	requested := flag.Int64("amount", 0, "requested loan amount in currency units")
	enqueue := flag.Bool("enqueue", false, "publish the request for the score worker instead of scoring locally")
	flag.Parse()

	if *memberID <= 0 {
		logger.Error("A positive member ID is required", "member_id", *memberID)
		os.Exit(2)
	}
	if *requested <= 0 {
		logger.Error("A positive requested amount is required", "amount", *requested)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if *enqueue {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		msg := amqp.NewScoreRequestMessage(uuid.NewString(), *memberID, core.NewMoneyFromUnits(*requested).Cents)
		if err := client.PublishScoreRequest(context.Background(), msg); err != nil {
			logger.Error("Failed to publish score request", "error", err)
			os.Exit(1)
		}
		if err := json.NewEncoder(os.Stdout).Encode(msg); err != nil {
			logger.Error("Failed to encode request receipt", "error", err)
			os.Exit(1)
		}
		return
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	scoringCfg, err := repo.ScoringConfig(ctx)
	if err != nil {
		logger.Warn("Failed to load scoring config, using defaults", "error", err)
		scoringCfg = scoring.DefaultConfig()
	}

	// A missing model artifact is expected before the first training run;
	// the orchestrator falls back to rule-based scoring.
	var assessor *scoring.Assessor
	extractor := features.NewExtractor(repo)
	m, err := model.Load(cfg.ModelPath)
	switch {
	case err == nil:
		assessor = scoring.NewAssessor(extractor, m)
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Model artifact not found, scoring without model", "path", cfg.ModelPath)
	default:
		logger.Warn("Failed to load model artifact, scoring without model", "error", err, "path", cfg.ModelPath)
	}

	orchestrator := recommend.New(repo, assessor, scoringCfg, nil)
	rec := orchestrator.Recommend(ctx, *memberID, core.NewMoneyFromUnits(*requested))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("Failed to encode recommendation", "error", err)
		os.Exit(1)
	}
}
