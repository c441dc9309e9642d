// Command pitchsync is the operator CLI for running scrapes, validation,
// Elo recomputation, and maintenance repair batches by hand or from cron.
//
// Usage:
//
//	pitchsync scrape --adapter gotsport
//	pitchsync validate --source gotsport --limit 500
//	pitchsync elo-backfill
//	pitchsync maintenance birth-year --dry-run
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pitchsync/pitchsync/internal/adapter"
	_ "github.com/pitchsync/pitchsync/internal/adapter/sources"
	"github.com/pitchsync/pitchsync/internal/config"
	"github.com/pitchsync/pitchsync/internal/db"
	"github.com/pitchsync/pitchsync/internal/elo"
	"github.com/pitchsync/pitchsync/internal/engine"
	"github.com/pitchsync/pitchsync/internal/maintenance"
	"github.com/pitchsync/pitchsync/internal/validate"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)
	_ = godotenv.Load(".env")

	if err := rootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pitchsync",
		Short:         "Operator CLI for the pitchsync scrape/validate/rank pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(scrapeCmd(), validateCmd(), eloRecalcCmd(), eloBackfillCmd(), rankBackfillCmd(), maintenanceCmd(), migrateCmd())
	return root
}

func loadPool(ctx context.Context) (*db.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func scrapeCmd() *cobra.Command {
	var adapterID, eventFilter string
	var reset bool
	var resume int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one adapter's scrape-and-stage cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			pool, cfg, err := loadPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			a, ok := adapter.Get(adapterID)
			if !ok {
				return fmt.Errorf("unknown adapter %q (known: %v)", adapterID, adapter.IDs())
			}

			opts := engine.Options{
				CheckpointDir:  cfg.CheckpointDir,
				TimeoutMinutes: cfg.TimeoutMinutes,
				EventFilter:    eventFilter,
				Reset:          reset,
				BatchThreshold: 100,
				DryRun:         dryRun,
			}
			if cmd.Flags().Changed("resume") {
				opts.ResumeOffset = &resume
			}

			result := engine.Run(ctx, pool.Pool, a, opts, logger)
			logger.Info("scrape finished",
				"adapter", result.Adapter,
				"processed", result.Counters.ItemsProcessed,
				"skipped", result.Counters.ItemsSkipped,
				"failed", result.Counters.ItemsFailed,
				"elapsed", result.Elapsed,
				"exit_reason", result.ExitReason)
			if result.ExitReason == engine.ExitFatal {
				return fmt.Errorf("scrape run ended fatally: %w", result.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&adapterID, "adapter", "", "adapter id to run (required)")
	cmd.Flags().StringVar(&eventFilter, "event", "", "restrict to a single source event id")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the saved checkpoint and start from offset 0")
	cmd.Flags().IntVar(&resume, "resume", 0, "resume from a specific event offset")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scrape and log without writing to staging_games")
	_ = cmd.MarkFlagRequired("adapter")
	return cmd
}

func validateCmd() *cobra.Command {
	var source string
	var limit, workers int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the validation pipeline over unprocessed staged rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			pool, _, err := loadPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			seasonYear := config.SeasonYear(time.Now())
			result, err := validate.Run(ctx, pool.Pool, seasonYear, validate.Options{
				Source:  source,
				Limit:   limit,
				DryRun:  dryRun,
				Workers: workers,
			}, logger)
			if err != nil {
				return fmt.Errorf("validation run failed: %w", err)
			}
			logger.Info("validation finished",
				"fetched", result.Fetched, "accepted", result.Accepted,
				"rejected", result.Rejected, "errors", result.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "restrict to rows from a single source platform")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum rows to fetch in this run")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent workers (0 = sequential)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and resolve without upserting matches; resolution still creates missing teams and events")
	return cmd
}

func eloRecalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elo-recalc",
		Short: "Recompute national/state ranks over existing Elo ratings and rank history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			pool, _, err := loadPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := elo.RecomputeRanks(ctx, pool.Pool); err != nil {
				return fmt.Errorf("recompute ranks: %w", err)
			}
			logger.Info("rank recomputation complete")
			return nil
		},
	}
	return cmd
}

func eloBackfillCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "elo-backfill",
		Short: "Replay the current season's matches chronologically to rebuild ratings and rank history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			pool, _, err := loadPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			result, err := elo.Replay(ctx, pool.Pool, dryRun, logger)
			if err != nil {
				return fmt.Errorf("elo backfill failed: %w", err)
			}
			logger.Info("elo backfill complete", "matches", result.MatchesProcessed, "teams", result.TeamsUpdated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "replay without writing results")
	return cmd
}

func rankBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank-backfill",
		Short: "Alias for elo-recalc — recompute ranks over every historical snapshot",
		RunE:  eloRecalcCmd().RunE,
	}
	return cmd
}

func maintenanceCmd() *cobra.Command {
	var dryRun bool
	root := &cobra.Command{
		Use:   "maintenance",
		Short: "Run one idempotent maintenance repair batch",
	}

	withPool := func(fn func(ctx context.Context, pool *pgxpool.Pool, seasonYear int) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			pool, _, err := loadPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return fn(ctx, pool.Pool, config.SeasonYear(time.Now()))
		}
	}

	birthYear := &cobra.Command{
		Use:   "birth-year",
		Short: "Repair teams whose name year disagrees with stored birth_year",
		RunE: withPool(func(ctx context.Context, pool *pgxpool.Pool, _ int) error {
			result, err := maintenance.RepairBirthYears(ctx, pool, dryRun, logger)
			if err != nil {
				return err
			}
			logger.Info("birth-year repair complete", "candidates", result.Candidates, "merged", result.Merged, "updated", result.Updated)
			return nil
		}),
	}

	unlinkedMatches := &cobra.Command{
		Use:   "unlinked-matches",
		Short: "Recover event links for matches with a source_match_key but no event",
		RunE: withPool(func(ctx context.Context, pool *pgxpool.Pool, seasonYear int) error {
			result, err := maintenance.RecoverUnlinkedMatches(ctx, pool, seasonYear, dryRun, logger)
			if err != nil {
				return err
			}
			logger.Info("unlinked-match recovery complete", "candidates", result.Candidates, "attached", result.Attached)
			return nil
		}),
	}

	legacyMatches := &cobra.Command{
		Use:   "legacy-matches",
		Short: "Recover event links for matches with neither an event nor a source_match_key",
		RunE: withPool(func(ctx context.Context, pool *pgxpool.Pool, seasonYear int) error {
			result, err := maintenance.RecoverLegacyMatches(ctx, pool, seasonYear, dryRun, logger)
			if err != nil {
				return err
			}
			logger.Info("legacy-match recovery complete", "candidates", result.Candidates, "attached", result.Attached)
			return nil
		}),
	}

	aliasCleanup := &cobra.Command{
		Use:   "alias-cleanup",
		Short: "Remove aliases whose year/gender now disagrees with their team",
		RunE: withPool(func(ctx context.Context, pool *pgxpool.Pool, _ int) error {
			result, err := maintenance.CleanupStaleAliases(ctx, pool, dryRun, logger)
			if err != nil {
				return err
			}
			logger.Info("alias cleanup complete", "candidates", result.Candidates, "removed", result.Removed)
			return nil
		}),
	}

	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	root.AddCommand(birthYear, unlinkedMatches, legacyMatches, aliasCleanup)
	return root
}

func migrateCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return db.Migrate(cfg.DatabaseURL)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration(s)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return db.MigrateDown(cfg.DatabaseURL, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, dirty, err := db.MigrationVersion(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Printf("version=%d dirty=%v\n", v, dirty)
			return nil
		},
	}

	root.AddCommand(up, down, version)
	return root
}
