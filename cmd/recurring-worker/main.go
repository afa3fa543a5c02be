package main

import (
	"context"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentRecurring)
	logger.Info("Starting recurring-worker", "interval", cfg.RecurringInterval, "timezone", cfg.Timezone)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// New occurrences are queued for export like any other write.
	var (
		syncPub   services.SyncPublisher
		changePub services.ChangePublisher
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		} else {
			defer c.Close()
			syncPub, changePub = c, c
		}
	} else {
		logger.Info("AMQP disabled, occurrences will not be exported")
	}

	ledger := services.NewLedgerService(repo, syncPub, changePub, nil, logger)
	processor := services.NewRecurringProcessor(ledger, logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	loc := cfg.Location()
	run := func(ctx context.Context) {
		today := core.Today(loc)
		res, err := processor.ProcessDue(ctx, today)
		if err != nil {
			logger.Error("Recurring processing failed", log.FieldError, err)
			return
		}
		logger.Info("Recurring processing complete",
			"today", today.String(),
			"templates", res.Templates,
			"created", res.Created,
			"failed", res.Failed,
			"next_check", time.Now().Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	run(ctx)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring worker stopped")
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}
