// Package commands implements moneyboard-admin, the operator CLI that runs
// maintenance jobs directly against the configured store.
package commands

import (
	"context"
	"fmt"

	"moneyboard/internal/cli"
	"moneyboard/internal/config"
	"moneyboard/internal/log"
	"moneyboard/internal/sheets"
	"moneyboard/internal/storage"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// Env is what a command runs against.
type Env struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    storage.Store
	Services cli.Services
	// Exporter is nil when Google Sheets export is not configured.
	Exporter sheets.LedgerExporter

	Close func()
}

// EnvLoader builds the Env once a command has parsed its flags.
type EnvLoader func(ctx context.Context) (*Env, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(load EnvLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "moneyboard-admin",
		Short:   "Maintenance commands for the moneyboard ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newTokenCommand(load),
		newSyncTasksCommand(load),
		newExportMonthCommand(load),
		newCleanupRecurringCommand(load),
	)

	return rootCmd
}

// withEnv loads the Env, runs fn and releases the Env afterwards.
func withEnv(cmd *cobra.Command, load EnvLoader, fn func(context.Context, *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := load(ctx)
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(ctx, env)
}

// DefaultEnv loads configuration from the environment and opens the
// configured store. Commands never publish change events: they run
// synchronously and leave nothing for the worker to do.
func DefaultEnv(ctx context.Context) (*Env, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(log.ComponentAdmin, cfg.LogLevel)

	be := cli.OpenBackend(ctx, logger, cfg)
	exporter, err := cli.NewLedgerExporter(ctx, logger, cfg)
	if err != nil {
		_ = be.Cleanup()
		return nil, fmt.Errorf("initializing Google Sheets client: %w", err)
	}

	return &Env{
		Config:   cfg,
		Logger:   logger,
		Store:    be.Store,
		Services: cli.NewServices(cfg, be.Store, nil),
		Exporter: exporter,
		Close: func() {
			if err := be.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		},
	}, nil
}
