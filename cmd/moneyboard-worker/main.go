package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneyboard/internal/cli"
	"moneyboard/internal/log"
	"moneyboard/internal/worker"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	logger.Info("Starting moneyboard-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	be := cli.OpenBackend(context.Background(), logger, cfg)
	if !be.Type.Shared() {
		logger.Warn("Worker is running on a backend that is not shared with the API", "backend", be.Type.String())
	}

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	exporter, err := cli.NewLedgerExporter(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only consumes, so its own services never publish.
	svc := cli.NewServices(cfg, be.Store, nil)
	w := worker.NewChangeWorker(svc.Transactions, svc.Tasks, exporter)

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		_ = amqpClient.Close()
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}
	})

	go func() {
		if err := w.Consume(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		stop()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
