// Package validate promotes staged rows into canonical matches. It reads a
// bounded batch of unprocessed staging rows, resolves both sides through
// internal/resolver (which finds or creates teams, leagues and
// tournaments), and upserts the canonical match. It writes no aliases.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panjf2000/ants/v2"

	"github.com/pitchsync/pitchsync/internal/dberr"
	"github.com/pitchsync/pitchsync/internal/resolver"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// stagedRowView is the shape struct-tag validation runs against; it mirrors
// the columns read out of staging_games but only the fields the pipeline
// actually needs to check before attempting resolution.
type stagedRowView struct {
	SourceMatchKey string    `validate:"required"`
	MatchDate      time.Time `validate:"required"`
	HomeTeamName   string    `validate:"required,nefield=AwayTeamName"`
	AwayTeamName   string    `validate:"required"`
	SourcePlatform string    `validate:"required"`
}

// StagedRow is one row read from staging_games awaiting validation.
type StagedRow struct {
	SourceMatchKey string
	MatchDate      time.Time
	MatchTime      *time.Time
	HomeTeamName   string
	AwayTeamName   string
	HomeScore      *int
	AwayScore      *int
	EventName      string
	EventID        string
	SourcePlatform string
}

// Options configures a validation run.
type Options struct {
	Source   string // optional source_platform filter, "" = all
	Limit    int    // bounded batch size
	DryRun   bool
	Workers  int // ants pool size; 0 = sequential
}

// Result summarizes one validation run.
type Result struct {
	Fetched  int
	Accepted int
	Rejected int
	Errors   int
}

// Run fetches a bounded batch of unprocessed staging rows, resolves and
// upserts each into the canonical store, marks the staged rows processed,
// and refreshes materialized views. The database connection is acquired
// for the whole run and released on every exit path.
func Run(ctx context.Context, pool *pgxpool.Pool, seasonYear int, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = 500
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := fetchUnprocessed(ctx, conn.Conn(), opts.Source, opts.Limit)
	if err != nil {
		return Result{}, err
	}

	result := Result{Fetched: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	process := func(row StagedRow) {
		outcome := processRow(ctx, pool, seasonYear, row, opts.DryRun, logger)
		mu.Lock()
		switch outcome {
		case outcomeAccepted:
			result.Accepted++
		case outcomeRejected:
			result.Rejected++
		case outcomeError:
			result.Errors++
		}
		mu.Unlock()
	}

	if opts.Workers > 0 {
		workerPool, poolErr := ants.NewPool(opts.Workers)
		if poolErr != nil {
			return result, fmt.Errorf("create validation worker pool: %w", poolErr)
		}
		defer workerPool.Release()

		var wg sync.WaitGroup
		for _, row := range rows {
			row := row
			wg.Add(1)
			if submitErr := workerPool.Submit(func() { defer wg.Done(); process(row) }); submitErr != nil {
				wg.Done()
				logger.Error("submit validation row", "error", submitErr, "key", row.SourceMatchKey)
			}
		}
		wg.Wait()
	} else {
		for _, row := range rows {
			process(row)
		}
	}

	if !opts.DryRun {
		if _, err := pool.Exec(ctx, "refresh_views"); err != nil {
			logger.Error("refresh materialized views", "error", err)
		}
	}

	return result, nil
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeRejected
	outcomeError
)

// processRow resolves and upserts one staged row. Each row gets its own
// Resolver instance, so the resolver cache is never shared across
// concurrent resolution paths (nor reused between rows).
func processRow(ctx context.Context, pool *pgxpool.Pool, seasonYear int, row StagedRow, dryRun bool, logger *slog.Logger) outcome {
	view := stagedRowView{
		SourceMatchKey: row.SourceMatchKey,
		MatchDate:      row.MatchDate,
		HomeTeamName:   row.HomeTeamName,
		AwayTeamName:   row.AwayTeamName,
		SourcePlatform: row.SourcePlatform,
	}
	if err := structValidator.Struct(view); err != nil {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Markf(dberr.ValidationError, "%s", err.Error()), logger)
		return outcomeRejected
	}

	res := resolver.New(pool, seasonYear, logger)

	home, err := res.FindOrCreateTeam(ctx, row.HomeTeamName, row.SourcePlatform)
	if err != nil {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Mark(err, dberr.ResolutionError), logger)
		return outcomeError
	}
	away, err := res.FindOrCreateTeam(ctx, row.AwayTeamName, row.SourcePlatform)
	if err != nil {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Mark(err, dberr.ResolutionError), logger)
		return outcomeError
	}
	if home == nil || away == nil {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Markf(dberr.ResolutionError, "team not resolved for %s", row.SourceMatchKey), logger)
		return outcomeRejected
	}
	if home.ID == away.ID {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Markf(dberr.ValidationError, "home and away resolve to the same team %d", home.ID), logger)
		return outcomeRejected
	}

	var leagueID, tournamentID *int64
	if row.EventName != "" || row.EventID != "" {
		ref, err := res.FindOrCreateEvent(ctx, row.EventID, row.EventName, "", row.SourcePlatform, home.State)
		if err != nil {
			markProcessed(ctx, pool, row.SourceMatchKey, dberr.Mark(err, dberr.ResolutionError), logger)
			return outcomeError
		}
		if ref.IsLeague {
			leagueID = &ref.ID
		} else {
			tournamentID = &ref.ID
		}
	}

	if dryRun {
		return outcomeAccepted
	}

	_, err = pool.Exec(ctx, "match_upsert",
		row.MatchDate, row.MatchTime, home.ID, away.ID, row.HomeScore, row.AwayScore,
		leagueID, tournamentID, row.SourcePlatform, row.SourceMatchKey,
	)
	if err != nil {
		markProcessed(ctx, pool, row.SourceMatchKey, dberr.Mark(err, dberr.Conflict), logger)
		return outcomeError
	}

	markProcessed(ctx, pool, row.SourceMatchKey, nil, logger)
	return outcomeAccepted
}

func markProcessed(ctx context.Context, pool *pgxpool.Pool, key string, procErr error, logger *slog.Logger) {
	var message *string
	if procErr != nil {
		m := procErr.Error()
		message = &m
		logger.Warn("staged row not promoted", "key", key, "error", procErr)
	}
	if _, err := pool.Exec(ctx, "staging_mark_processed", key, message); err != nil {
		logger.Error("mark staging row processed", "key", key, "error", err)
	}
}

func fetchUnprocessed(ctx context.Context, conn *pgx.Conn, source string, limit int) ([]StagedRow, error) {
	rows, err := conn.Query(ctx, "staging_unprocessed_batch", source, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed staging rows: %w", err)
	}
	defer rows.Close()

	var out []StagedRow
	for rows.Next() {
		var r StagedRow
		var scrapedAt time.Time
		var rawData []byte
		if err := rows.Scan(
			&r.SourceMatchKey, &r.MatchDate, &r.MatchTime, &r.HomeTeamName, &r.AwayTeamName,
			&r.HomeScore, &r.AwayScore, &r.EventName, &r.EventID, &r.SourcePlatform, &rawData, &scrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan staging row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
