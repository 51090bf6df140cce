package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	v1 "agro-valuation/valuation-portal/valuation-portal-backend/api/v1"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/config"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single revaluation sweep and exit")
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database")

	api, err := v1.SetupValuationsAPI(context.Background(), db, *cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up valuation service", zap.Error(err))
	}
	defer api.Close()

	workerConfig := scheduler.DefaultRevaluationConfig()
	workerConfig.CronExpression = cfg.Valuation.RevaluationSchedule
	if cfg.Valuation.RevaluationBatchSize > 0 {
		workerConfig.BatchSize = cfg.Valuation.RevaluationBatchSize
	}
	if cfg.Valuation.RevaluationConcurrent > 0 {
		workerConfig.MaxConcurrent = cfg.Valuation.RevaluationConcurrent
	}

	manager := scheduler.NewRevaluationManager(api.Repository, api.Service, logger, workerConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		stats := manager.RunOnce(ctx)
		if stats.Failed > 0 {
			logger.Warn("Revaluation sweep finished with failures", zap.Int("failed", stats.Failed))
			os.Exit(1)
		}
		return
	}

	if err := scheduler.ValidateCronExpression(workerConfig.CronExpression); err != nil {
		logger.Fatal("Invalid revaluation schedule",
			zap.String("cron", workerConfig.CronExpression),
			zap.Error(err))
	}
	if err := manager.Start(); err != nil {
		logger.Fatal("Failed to start revaluation manager", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()
	manager.Stop()
	logger.Info("Revaluation worker stopped")
}
