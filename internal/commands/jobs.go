package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneyboard/internal/auth"
	"moneyboard/internal/core"
	"moneyboard/internal/services"
	"moneyboard/internal/worker"

	"github.com/spf13/cobra"
)

func newTokenCommand(load EnvLoader) *cobra.Command {
	var owner string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %v", ttl)
			}
			return withEnv(cmd, load, func(ctx context.Context, env *Env) error {
				token, err := auth.NewJWT(env.Config.JWTSecret).Generate(owner, ttl)
				if err != nil {
					return fmt.Errorf("generating token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id the token authenticates")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newSyncTasksCommand(load EnvLoader) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "sync-tasks",
		Short: "Run the bill-task synchronizer for one owner or for everyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(ctx context.Context, env *Env) error {
				out := cmd.OutOrStdout()
				if owner != "" {
					res, err := env.Services.Tasks.SyncOwner(ctx, owner)
					if err != nil {
						return fmt.Errorf("syncing %s: %w", owner, err)
					}
					fmt.Fprintf(out, "%s: created %d, updated %d, removed %d\n", owner, res.Created, res.Updated, res.Removed)
					return nil
				}

				p := services.NewRolloverProcessor(env.Store, env.Services.Tasks, services.RolloverConfig{
					Interval:    env.Config.RolloverInterval,
					Concurrency: env.Config.RolloverConcurrency,
				})
				stats, err := p.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "owners %d, changed %d, failed %d\n", stats.Owners, stats.Changed, stats.Failed)
				if stats.Failed > 0 {
					return fmt.Errorf("%d owners failed to sync", stats.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only sync this owner")

	return cmd
}

func newExportMonthCommand(load EnvLoader) *cobra.Command {
	var owner, month string

	cmd := &cobra.Command{
		Use:   "export-month",
		Short: "Write an owner's month ledger to Google Sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(ctx context.Context, env *Env) error {
				if env.Exporter == nil {
					return errors.New("google sheets export is not configured: set GOOGLE_SPREADSHEET_ID")
				}
				m := env.Services.Transactions.CurrentMonth()
				if month != "" {
					var err error
					if m, err = core.ParseYearMonth(month); err != nil {
						return err
					}
				}
				w := worker.NewChangeWorker(env.Services.Transactions, env.Services.Tasks, env.Exporter)
				if err := w.Export(ctx, owner, m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s for %s\n", m, owner)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner whose ledger is exported")
	cmd.Flags().StringVar(&month, "month", "", "month to export as YYYY-MM (default: current month)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newCleanupRecurringCommand(load EnvLoader) *cobra.Command {
	var (
		owner     string
		allOwners bool
		dryRun    bool
		purge     bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-recurring",
		Short: "Remove duplicate recurring templates",
		Long: "Templates sharing a description and amount are collapsed into the oldest one, " +
			"whose start month is filled in when missing. With --purge every recurring template " +
			"and its bill tasks are deleted instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (owner == "") == !allOwners {
				return errors.New("exactly one of --owner or --all-owners is required")
			}
			if purge && dryRun {
				return errors.New("--purge cannot be combined with --dry-run")
			}
			return withEnv(cmd, load, func(ctx context.Context, env *Env) error {
				owners := []string{owner}
				if allOwners {
					var err error
					if owners, err = env.Store.ListRecurringOwners(ctx); err != nil {
						return fmt.Errorf("listing owners: %w", err)
					}
				}

				out := cmd.OutOrStdout()
				txs := env.Services.Transactions
				for _, o := range owners {
					if purge {
						n, err := txs.PurgeRecurring(ctx, o)
						if err != nil {
							return fmt.Errorf("purging %s: %w", o, err)
						}
						fmt.Fprintf(out, "%s: deleted %d recurring templates\n", o, n)
						continue
					}
					res, err := txs.DedupeRecurring(ctx, o, dryRun)
					if err != nil {
						return fmt.Errorf("cleaning up %s: %w", o, err)
					}
					verb := "deleted"
					if dryRun {
						verb = "would delete"
					}
					fmt.Fprintf(out, "%s: %d templates, %d unique, %s %d duplicates (%d tasks), backfilled %d start months\n",
						o, res.Templates, res.Unique, verb, res.Deleted, res.Tasks, res.Backfilled)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner to clean up")
	cmd.Flags().BoolVar(&allOwners, "all-owners", false, "clean up every owner with recurring templates")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report duplicates without deleting them")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete every recurring template")

	return cmd
}
