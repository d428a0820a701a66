package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/audit"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/log"
)

const (
	dedupWindow        = time.Hour
	cacheSweepInterval = 5 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", "text", log.ComponentAudit)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentAudit)

	logger.Info("Starting budget-audit",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		log.FieldOperation, log.OpStartup)

	if cfg.EventsBackend != "amqp" {
		logger.Warn("EVENTS_BACKEND is not amqp; the queue only fills when the server publishes to AMQP",
			"events", cfg.EventsBackend)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	auditor := audit.New(logger, dedupWindow)
	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger, auditor.Seen())

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(gctx, auditor.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return sweeper.Run(gctx, cacheSweepInterval)
	})
	g.Go(func() error {
		return cli.GracefulShutdown(gctx, logger, shutdownTimeout,
			func(context.Context) error { return client.Close() },
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Audit consumer stopped with error", "error", err)
		os.Exit(1)
	}

	recorded, duplicates := auditor.Stats()
	logger.Info("Audit consumer stopped", "recorded", recorded, "duplicates", duplicates)
}
