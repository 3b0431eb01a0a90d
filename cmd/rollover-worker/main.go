package main

import (
	"context"
	"os"
	"time"

	"moneyboard/internal/cli"
	"moneyboard/internal/log"
	"moneyboard/internal/services"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentRollover, cfg.LogLevel)

	logger.Info("Starting rollover-worker",
		"interval", cfg.RolloverInterval,
		"concurrency", cfg.RolloverConcurrency)

	be := cli.OpenBackend(context.Background(), logger, cfg)

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("AMQP unavailable, task changes will not be published", log.FieldError, err)
		amqpClient = nil
	}

	svc := cli.NewServices(cfg, be.Store, amqpClient)
	processor := services.NewRolloverProcessor(be.Store, svc.Tasks, services.RolloverConfig{
		Interval:    cfg.RolloverInterval,
		Concurrency: cfg.RolloverConcurrency,
	})

	ctx, _, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop rollover processor", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}
	})

	// The loop gets its own context so Stop can wait for a pass in flight
	// instead of having it cancelled underneath.
	if err := processor.Start(context.Background()); err != nil {
		logger.Error("Failed to start rollover processor", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover worker stopped")
}
