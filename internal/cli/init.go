// Package cli provides common CLI initialization utilities.
// It consolidates the startup shared by cmd/moneyboard, cmd/moneyboard-worker,
// cmd/rollover-worker and cmd/moneyboard-admin.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneyboard/internal/amqp"
	"moneyboard/internal/backend"
	"moneyboard/internal/config"
	"moneyboard/internal/log"
	"moneyboard/internal/services"
	"moneyboard/internal/sheets"
	gsheet "moneyboard/internal/sheets/google"
	"moneyboard/internal/storage"
)

// SetupLogger builds the process logger for component and installs it as
// the slog default.
func SetupLogger(component, level string) *log.Logger {
	return log.Setup(component, level)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		SetupLogger(log.ComponentApp, cfg.LogLevel).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the store selected by DATA_BACKEND. Returns the backend
// or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return result
}

// ConnectAMQP dials the broker when AMQP_URL is set. A nil client with a
// nil error means publishing is disabled.
func ConnectAMQP(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, err
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// NewLedgerExporter returns the Google Sheets exporter, or nil when sheets
// export is not configured.
func NewLedgerExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.LedgerExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// Services bundles the application services every command builds.
type Services struct {
	Transactions *services.TransactionService
	Tasks        *services.TaskService
}

// NewServices wires the services against store. client may be nil.
func NewServices(cfg *config.Config, store storage.Store, client *amqp.Client) Services {
	var pub services.ChangePublisher
	if client != nil {
		pub = client
	}
	txs := services.NewTransactionService(store, pub, services.TransactionServiceConfig{
		Location:  cfg.Location(),
		CacheSize: cfg.ViewCacheSize,
		CacheTTL:  cfg.ViewCacheTTL,
	})
	tasks := services.NewTaskService(store, txs, services.NewTaskSynchronizer(store), pub)
	return Services{Transactions: txs, Tasks: tasks}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM, or when stop is
// called; cleanup then runs under timeout and done is closed after it.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, stop context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, cancel, finished
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
