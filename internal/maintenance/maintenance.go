// Package maintenance runs periodic idempotent repair batches as Go
// tickers. All four ops are safe to run repeatedly or concurrently with
// ongoing validation writes: they only tighten existing rows, never
// introduce new canonical matches.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	SeasonYear            int
	BirthYearInterval     time.Duration // Birth-year conflict repair + merge
	AliasCleanupInterval  time.Duration // Remove aliases contradicting their team
	UnlinkedMatchInterval time.Duration // Recover event links via source_match_key
	LegacyMatchInterval   time.Duration // Recover event links by date+team-name join
}

// DefaultConfig returns sensible production defaults: the birth-year repair
// and alias cleanup run infrequently since they depend on slow-moving team
// metadata, while the two event-recovery sweeps run hourly to catch up
// shortly after a validation run leaves matches unlinked.
func DefaultConfig(seasonYear int) Config {
	return Config{
		SeasonYear:            seasonYear,
		BirthYearInterval:     24 * time.Hour,
		AliasCleanupInterval:  7 * 24 * time.Hour,
		UnlinkedMatchInterval: 1 * time.Hour,
		LegacyMatchInterval:   1 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("maintenance tickers started",
		"birth_year", cfg.BirthYearInterval,
		"alias_cleanup", cfg.AliasCleanupInterval,
		"unlinked_matches", cfg.UnlinkedMatchInterval,
		"legacy_matches", cfg.LegacyMatchInterval)

	tickers := make([]*time.Ticker, 0, 4)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.BirthYearInterval > 0 {
		t := time.NewTicker(cfg.BirthYearInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "birth_year_repair", func() {
			result, err := RepairBirthYears(ctx, pool, false, logger)
			if err != nil {
				logger.Warn("birth-year repair failed", "error", err)
				return
			}
			logger.Info("birth-year repair complete", "candidates", result.Candidates, "merged", result.Merged, "updated", result.Updated)
		})
	}

	if cfg.AliasCleanupInterval > 0 {
		t := time.NewTicker(cfg.AliasCleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "alias_cleanup", func() {
			result, err := CleanupStaleAliases(ctx, pool, false, logger)
			if err != nil {
				logger.Warn("alias cleanup failed", "error", err)
				return
			}
			logger.Info("alias cleanup complete", "candidates", result.Candidates, "removed", result.Removed)
		})
	}

	if cfg.UnlinkedMatchInterval > 0 {
		t := time.NewTicker(cfg.UnlinkedMatchInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "unlinked_match_recovery", func() {
			result, err := RecoverUnlinkedMatches(ctx, pool, cfg.SeasonYear, false, logger)
			if err != nil {
				logger.Warn("unlinked-match recovery failed", "error", err)
				return
			}
			logger.Info("unlinked-match recovery complete", "candidates", result.Candidates, "attached", result.Attached)
		})
	}

	if cfg.LegacyMatchInterval > 0 {
		t := time.NewTicker(cfg.LegacyMatchInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "legacy_match_recovery", func() {
			result, err := RecoverLegacyMatches(ctx, pool, cfg.SeasonYear, false, logger)
			if err != nil {
				logger.Warn("legacy-match recovery failed", "error", err)
				return
			}
			logger.Info("legacy-match recovery complete", "candidates", result.Candidates, "attached", result.Attached)
		})
	}

	<-ctx.Done()
	logger.Info("maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
