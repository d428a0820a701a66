package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/core"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
)

const (
	reportCacheSize    = 16
	cacheSweepInterval = time.Minute
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", "text", log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	store, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	publisher, err := factory.CreatePublisher(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err, "events", backendCfg.Events)
		_ = store.Close()
		os.Exit(1)
	}

	reports := cache.NewLRUCache[[]core.DescriptionAmount](reportCacheSize, cfg.CacheTTL)
	ledger := services.NewLedger(store,
		services.WithPublisher(publisher),
		services.WithReportCache(reports),
		services.WithLogger(logger),
	)
	if err := ledger.Init(ctx); err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		_ = ledger.Close()
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger, cfg.SessionTTL)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	sweeper.Register(reports)
	sweeper.Register(srv.Sessions())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budget server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			"events", backendCfg.Events,
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx, cacheSweepInterval)
	})
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, shutdownTimeout,
			srv.Shutdown,
			func(context.Context) error { return ledger.Close() },
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"total_requests", m.TotalRequests,
		"failed_requests", m.FailedRequests,
		"last_response_us", m.LastResponseTime)
}
