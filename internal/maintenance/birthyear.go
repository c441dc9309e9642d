package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

// BirthYearRepairResult summarizes one birth-year repair run.
type BirthYearRepairResult struct {
	Candidates         int
	Merged             int
	MatchesSoftDeleted int
	Updated            int
}

type birthYearCandidate struct {
	teamID      int64
	targetYear  int
	currentYear *int
}

// RepairBirthYears finds every team whose display_name carries a 4-digit
// year disagreeing with its stored birth_year and fixes it in four phases:
// merge any existing team already occupying the post-fix identity (whether
// that blocker predates this run or is itself another repair candidate
// converging on the same identity), soft-delete any match that becomes a
// conflict or self-match as a result, bulk-update the survivor's
// birth_year, then refresh the materialized views.
func RepairBirthYears(ctx context.Context, pool *pgxpool.Pool, dryRun bool, logger *slog.Logger) (BirthYearRepairResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	candidates, err := fetchBirthYearCandidates(ctx, pool)
	if err != nil {
		return BirthYearRepairResult{}, err
	}

	result := BirthYearRepairResult{Candidates: len(candidates)}
	if dryRun {
		return result, nil
	}

	for _, c := range candidates {
		survivorID := c.teamID

		for {
			blockerID, ok, err := findIdentityBlocker(ctx, pool, survivorID, c.targetYear)
			if err != nil {
				return result, err
			}
			if !ok {
				break
			}

			winner, loser, err := pickSurvivor(ctx, pool, survivorID, blockerID)
			if err != nil {
				return result, err
			}
			softDeleted, err := mergeTeam(ctx, pool, winner, loser, "birth_year_repair_merge", logger)
			if err != nil {
				return result, err
			}
			result.Merged++
			result.MatchesSoftDeleted += softDeleted
			survivorID = winner
		}

		if _, err := pool.Exec(ctx, `
			UPDATE teams
			SET birth_year = $2, birth_year_source = 'parsed_4digit',
			    data_flags = array_append(data_flags, 'birth_year_repaired'), updated_at = NOW()
			WHERE id = $1 AND birth_year IS DISTINCT FROM $2`,
			survivorID, c.targetYear,
		); err != nil {
			return result, fmt.Errorf("update birth_year for team %d: %w", survivorID, err)
		}
		result.Updated++
	}

	if _, err := pool.Exec(ctx, "refresh_views"); err != nil {
		logger.Error("refresh materialized views after birth-year repair", "error", err)
	}

	return result, nil
}

func fetchBirthYearCandidates(ctx context.Context, pool *pgxpool.Pool) ([]birthYearCandidate, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, display_name, birth_year
		FROM teams
		WHERE merged_into_team_id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("fetch teams for birth-year repair: %w", err)
	}
	defer rows.Close()

	var out []birthYearCandidate
	for rows.Next() {
		var id int64
		var displayName string
		var birthYear *int
		if err := rows.Scan(&id, &displayName, &birthYear); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		year, ok := nameparse.ExtractFourDigitYear(displayName)
		if !ok {
			continue
		}
		if birthYear != nil && *birthYear == year {
			continue
		}
		out = append(out, birthYearCandidate{teamID: id, targetYear: year, currentYear: birthYear})
	}
	return out, rows.Err()
}

// findIdentityBlocker returns another active team already occupying the
// identity (canonical_name, targetYear, gender, state) that teamID would
// collide with once its birth_year is updated.
func findIdentityBlocker(ctx context.Context, pool *pgxpool.Pool, teamID int64, targetYear int) (int64, bool, error) {
	var blockerID int64
	err := pool.QueryRow(ctx, `
		SELECT other.id
		FROM teams self
		JOIN teams other ON other.id <> self.id
			AND other.merged_into_team_id IS NULL
			AND lower(other.canonical_name) = lower(self.canonical_name)
			AND other.gender = self.gender
			AND other.state = self.state
			AND COALESCE(other.birth_year, -1) = $2
		WHERE self.id = $1 AND self.merged_into_team_id IS NULL
		LIMIT 1`,
		teamID, targetYear,
	).Scan(&blockerID)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find identity blocker for team %d: %w", teamID, err)
	}
	return blockerID, true, nil
}

// pickSurvivor keeps the team with the most matches played, breaking ties
// by lower id for determinism.
func pickSurvivor(ctx context.Context, pool *pgxpool.Pool, a, b int64) (winner, loser int64, err error) {
	var aMatches, bMatches int
	if err := pool.QueryRow(ctx, `SELECT matches_played FROM teams WHERE id = $1`, a).Scan(&aMatches); err != nil {
		return 0, 0, fmt.Errorf("read matches_played for team %d: %w", a, err)
	}
	if err := pool.QueryRow(ctx, `SELECT matches_played FROM teams WHERE id = $1`, b).Scan(&bMatches); err != nil {
		return 0, 0, fmt.Errorf("read matches_played for team %d: %w", b, err)
	}
	switch {
	case aMatches > bMatches:
		return a, b, nil
	case bMatches > aMatches:
		return b, a, nil
	case a < b:
		return a, b, nil
	default:
		return b, a, nil
	}
}

// mergeTeam transfers loser's matches and aliases to winner, soft-deleting
// any match that becomes a duplicate or a self-match as a result, then
// marks loser as merged. Returns the number of matches soft-deleted.
func mergeTeam(ctx context.Context, pool *pgxpool.Pool, winner, loser int64, reason string, logger *slog.Logger) (int, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin merge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var softDeleted int

	// Case 1: loser played winner directly. Rewriting loser's side to
	// winner would create a self-match; soft-delete instead.
	tag, err := tx.Exec(ctx, `
		UPDATE matches
		SET deleted_at = NOW(), deleted_reason = $3
		WHERE deleted_at IS NULL
		  AND ((home_team_id = $1 AND away_team_id = $2) OR (home_team_id = $2 AND away_team_id = $1))`,
		winner, loser, reason+"_self_match",
	)
	if err != nil {
		return 0, fmt.Errorf("soft-delete direct winner/loser matches: %w", err)
	}
	softDeleted += int(tag.RowsAffected())

	// Case 2: loser and winner each already played the same opponent on the
	// same date. After rewriting loser's side to winner this becomes a
	// duplicate; keep winner's existing match, soft-delete loser's copy.
	tag, err = tx.Exec(ctx, `
		UPDATE matches AS lm
		SET deleted_at = NOW(), deleted_reason = $3
		FROM matches AS wm
		WHERE lm.deleted_at IS NULL AND wm.deleted_at IS NULL AND lm.id <> wm.id
		  AND (lm.home_team_id = $2 OR lm.away_team_id = $2)
		  AND (wm.home_team_id = $1 OR wm.away_team_id = $1)
		  AND wm.match_date = lm.match_date
		  AND (
			CASE WHEN lm.home_team_id = $2 THEN lm.away_team_id ELSE lm.home_team_id END
			=
			CASE WHEN wm.home_team_id = $1 THEN wm.away_team_id ELSE wm.home_team_id END
		  )`,
		winner, loser, reason+"_duplicate",
	)
	if err != nil {
		return 0, fmt.Errorf("soft-delete duplicate matches after merge: %w", err)
	}
	softDeleted += int(tag.RowsAffected())

	if _, err := tx.Exec(ctx, `UPDATE matches SET home_team_id = $1, updated_at = NOW() WHERE home_team_id = $2 AND deleted_at IS NULL`, winner, loser); err != nil {
		return 0, fmt.Errorf("rewrite home_team_id on merge: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE matches SET away_team_id = $1, updated_at = NOW() WHERE away_team_id = $2 AND deleted_at IS NULL`, winner, loser); err != nil {
		return 0, fmt.Errorf("rewrite away_team_id on merge: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM team_name_aliases a
		WHERE a.team_id = $2
		  AND EXISTS (SELECT 1 FROM team_name_aliases b WHERE b.team_id = $1 AND b.alias_name = a.alias_name)`,
		winner, loser,
	); err != nil {
		return 0, fmt.Errorf("drop colliding aliases before transfer: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE team_name_aliases SET team_id = $1 WHERE team_id = $2`, winner, loser); err != nil {
		return 0, fmt.Errorf("transfer aliases on merge: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE teams SET merged_into_team_id = $1, updated_at = NOW() WHERE id = $2`, winner, loser); err != nil {
		return 0, fmt.Errorf("mark loser merged: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit merge transaction: %w", err)
	}

	logger.Info("merged team", "winner", winner, "loser", loser, "matches_soft_deleted", softDeleted)
	return softDeleted, nil
}
