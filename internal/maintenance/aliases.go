package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

// AliasCleanupResult summarizes one alias cleanup run.
type AliasCleanupResult struct {
	Candidates int
	Removed    int
}

// CleanupStaleAliases removes aliases of any source whose own text now disagrees
// with the team they're attached to: an alias that carries a 4-digit year or
// boys/girls token contradicting the team's current birth_year or gender is
// a sign the team was since corrected (by birth-year repair or a later
// manual fix) out from under an alias some earlier fuzzy match learned.
// Aliases with no extractable year or gender are left alone; they carry no
// claim to contradict.
func CleanupStaleAliases(ctx context.Context, pool *pgxpool.Pool, dryRun bool, logger *slog.Logger) (AliasCleanupResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := pool.Query(ctx, `
		SELECT a.id, a.alias_name, t.birth_year, t.gender
		FROM team_name_aliases a
		JOIN teams t ON t.id = a.team_id
		WHERE t.merged_into_team_id IS NULL`)
	if err != nil {
		return AliasCleanupResult{}, fmt.Errorf("fetch aliases: %w", err)
	}

	type aliasRow struct {
		id        int64
		aliasName string
		birthYear *int
		gender    string
	}
	var rowsOut []aliasRow
	for rows.Next() {
		var a aliasRow
		if err := rows.Scan(&a.id, &a.aliasName, &a.birthYear, &a.gender); err != nil {
			rows.Close()
			return AliasCleanupResult{}, fmt.Errorf("scan alias: %w", err)
		}
		rowsOut = append(rowsOut, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return AliasCleanupResult{}, err
	}

	var stale []int64
	for _, a := range rowsOut {
		if aliasYear, ok := nameparse.ExtractFourDigitYear(a.aliasName); ok {
			if a.birthYear != nil && aliasYear != *a.birthYear {
				stale = append(stale, a.id)
				continue
			}
		}
		if aliasGender := nameparse.ExtractGenderIndicator(a.aliasName); aliasGender != nameparse.GenderUnknown {
			if a.gender != "" && a.gender != string(nameparse.GenderUnknown) && a.gender != string(aliasGender) {
				stale = append(stale, a.id)
			}
		}
	}

	result := AliasCleanupResult{Candidates: len(stale)}
	if dryRun || len(stale) == 0 {
		return result, nil
	}

	tag, err := pool.Exec(ctx, `DELETE FROM team_name_aliases WHERE id = ANY($1)`, stale)
	if err != nil {
		return result, fmt.Errorf("delete stale aliases: %w", err)
	}
	result.Removed = int(tag.RowsAffected())
	logger.Info("removed stale aliases", "count", result.Removed)
	return result, nil
}
