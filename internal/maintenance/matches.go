package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/resolver"
)

// RecoveryResult summarizes an unlinked- or legacy-match recovery run.
type RecoveryResult struct {
	Candidates int
	Attached   int
}

// RecoverUnlinkedMatches finds canonical matches with no event link but a
// source_match_key, joins back to staging_games to recover the event the
// adapter originally reported, resolves (or creates) that event, and
// attaches the appropriate foreign key.
func RecoverUnlinkedMatches(ctx context.Context, pool *pgxpool.Pool, seasonYear int, dryRun bool, logger *slog.Logger) (RecoveryResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := pool.Query(ctx, `
		SELECT m.id, sg.event_name, sg.event_id, sg.source_platform, t.state
		FROM matches m
		JOIN staging_games sg ON sg.source_match_key = m.source_match_key
		JOIN teams t ON t.id = m.home_team_id
		WHERE m.deleted_at IS NULL
		  AND m.league_id IS NULL AND m.tournament_id IS NULL
		  AND m.source_match_key IS NOT NULL
		  AND (COALESCE(sg.event_name, '') <> '' OR COALESCE(sg.event_id, '') <> '')`)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("fetch unlinked matches: %w", err)
	}

	type candidate struct {
		matchID        int64
		eventName      string
		eventID        string
		sourcePlatform string
		state          string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.matchID, &c.eventName, &c.eventID, &c.sourcePlatform, &c.state); err != nil {
			rows.Close()
			return RecoveryResult{}, fmt.Errorf("scan unlinked match: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return RecoveryResult{}, err
	}

	result := RecoveryResult{Candidates: len(candidates)}
	if dryRun {
		return result, nil
	}

	res := resolver.New(pool, seasonYear, logger)
	for _, c := range candidates {
		ref, err := res.FindOrCreateEvent(ctx, c.eventID, c.eventName, "", c.sourcePlatform, c.state)
		if err != nil {
			logger.Warn("resolve event for unlinked match", "match_id", c.matchID, "error", err)
			continue
		}
		var execErr error
		if ref.IsLeague {
			_, execErr = pool.Exec(ctx, `UPDATE matches SET league_id = $2, updated_at = NOW() WHERE id = $1`, c.matchID, ref.ID)
		} else {
			_, execErr = pool.Exec(ctx, `UPDATE matches SET tournament_id = $2, updated_at = NOW() WHERE id = $1`, c.matchID, ref.ID)
		}
		if execErr != nil {
			logger.Warn("attach event to unlinked match", "match_id", c.matchID, "error", execErr)
			continue
		}
		result.Attached++
	}
	return result, nil
}

// RecoverLegacyMatches finds canonical matches with neither an event link
// nor a source_match_key, and tries to join them back to staging_games by
// (date, normalized home name, normalized away name) including the swapped
// orientation. A match is attached only when exactly one staging candidate
// matches, since an ambiguous join would silently mislink events.
func RecoverLegacyMatches(ctx context.Context, pool *pgxpool.Pool, seasonYear int, dryRun bool, logger *slog.Logger) (RecoveryResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := pool.Query(ctx, `
		SELECT m.id, m.match_date, th.canonical_name, ta.canonical_name, t.state
		FROM matches m
		JOIN teams th ON th.id = m.home_team_id
		JOIN teams ta ON ta.id = m.away_team_id
		JOIN teams t ON t.id = m.home_team_id
		WHERE m.deleted_at IS NULL
		  AND m.league_id IS NULL AND m.tournament_id IS NULL
		  AND m.source_match_key IS NULL`)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("fetch legacy matches: %w", err)
	}

	type candidate struct {
		matchID   int64
		matchDate time.Time
		homeName  string
		awayName  string
		state     string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.matchID, &c.matchDate, &c.homeName, &c.awayName, &c.state); err != nil {
			rows.Close()
			return RecoveryResult{}, fmt.Errorf("scan legacy match: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return RecoveryResult{}, err
	}

	result := RecoveryResult{Candidates: len(candidates)}
	if dryRun {
		return result, nil
	}

	res := resolver.New(pool, seasonYear, logger)
	for _, c := range candidates {
		stagingRows, err := pool.Query(ctx, `
			SELECT event_name, event_id, source_platform
			FROM staging_games
			WHERE match_date = $1
			  AND (
				(lower(home_team_name) = lower($2) AND lower(away_team_name) = lower($3))
				OR (lower(home_team_name) = lower($3) AND lower(away_team_name) = lower($2))
			  )`,
			c.matchDate, c.homeName, c.awayName,
		)
		if err != nil {
			logger.Warn("query staging candidates for legacy match", "match_id", c.matchID, "error", err)
			continue
		}

		type stagingCandidate struct {
			eventName, eventID, sourcePlatform string
		}
		var found []stagingCandidate
		for stagingRows.Next() {
			var sc stagingCandidate
			if err := stagingRows.Scan(&sc.eventName, &sc.eventID, &sc.sourcePlatform); err != nil {
				stagingRows.Close()
				logger.Warn("scan staging candidate", "match_id", c.matchID, "error", err)
				found = nil
				break
			}
			found = append(found, sc)
		}
		stagingRows.Close()

		if len(found) != 1 {
			continue // zero or ambiguous candidates: leave unattached
		}
		sc := found[0]
		if sc.eventName == "" && sc.eventID == "" {
			continue
		}

		ref, err := res.FindOrCreateEvent(ctx, sc.eventID, sc.eventName, "", sc.sourcePlatform, c.state)
		if err != nil {
			logger.Warn("resolve event for legacy match", "match_id", c.matchID, "error", err)
			continue
		}
		var execErr error
		if ref.IsLeague {
			_, execErr = pool.Exec(ctx, `UPDATE matches SET league_id = $2, updated_at = NOW() WHERE id = $1`, c.matchID, ref.ID)
		} else {
			_, execErr = pool.Exec(ctx, `UPDATE matches SET tournament_id = $2, updated_at = NOW() WHERE id = $1`, c.matchID, ref.ID)
		}
		if execErr != nil {
			logger.Warn("attach event to legacy match", "match_id", c.matchID, "error", execErr)
			continue
		}
		result.Attached++
	}
	return result, nil
}
