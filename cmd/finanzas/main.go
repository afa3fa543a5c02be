package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/snapshot"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	logger.Info("Starting finanzas", "port", cfg.Port, "timezone", cfg.Timezone)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	hub := snapshot.NewHub(repo, logger)

	// Without a broker writes still land in SQLite; export and other
	// instances just never hear about them.
	var (
		amqpClient *amqp.Client
		syncPub    services.SyncPublisher
		changePub  services.ChangePublisher
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without broker", log.FieldError, err)
		} else {
			defer c.Close()
			amqpClient, syncPub, changePub = c, c, c
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled, transactions will not be exported")
	}

	ledger := services.NewLedgerService(repo, syncPub, changePub, hub, logger)

	dashCache := cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(dashCache)
	dashboard := services.NewDashboardService(hub, dashCache, logger)

	if _, err := hub.Refresh(ctx); err != nil {
		logger.Error("Initial snapshot load failed", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:                ":" + cfg.Port,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
		Location:            cfg.Location(),
		WindowRadiusDays:    cfg.WindowRadiusDays,
		UpcomingHorizonDays: cfg.UpcomingHorizonDays,
	}, ledger, dashboard, repo, logger)

	g, gctx := errgroup.WithContext(ctx)
	changes := make(chan snapshot.Change, 64)

	g.Go(func() error { return hub.Run(gctx, changes) })
	g.Go(func() error {
		cacheManager.Run(gctx, cfg.CacheTTL)
		return nil
	})
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.RunWithRetry(gctx, "changes", func(ctx context.Context) error {
				return amqpClient.ConsumeChanges(ctx, func(ctx context.Context, m *amqp.ChangeMessage) error {
					select {
					case changes <- snapshot.Change{Entity: m.Entity, ID: m.ID, Op: m.Op}:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				})
			})
		})
	}
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
