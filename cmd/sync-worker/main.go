package main

import (
	"context"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	if err := cfg.ValidateSyncWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting sync-worker", "exporter", cfg.Exporter, "batch_size", cfg.SyncBatchSize)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	exporterCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid exporter configuration", log.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger).CreateExporter(ctx, exporterCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err, "exporter", cfg.Exporter)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, exporter, logger, cfg.SyncBatchSize)

	// The poller starts with a pass over everything still pending, which
	// covers messages lost while no worker was running.
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{PollInterval: cfg.SyncInterval}, logger)
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	err = amqpClient.RunWithRetry(ctx, "transaction-sync", func(ctx context.Context) error {
		return amqpClient.ConsumeTransactionSync(ctx, syncWorker.HandleSyncMessage)
	})
	if err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync processor did not stop cleanly", log.FieldError, err)
	}
	logger.Info("Sync worker stopped")
}
