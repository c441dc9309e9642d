package elo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRecord is one completed match read in chronological replay order.
type MatchRecord struct {
	ID          int64
	MatchDate   time.Time
	HomeTeamID  int64
	AwayTeamID  int64
	HomeScore   int
	AwayScore   int
}

// teamState is the in-memory per-team accumulator the replay mutates.
type teamState struct {
	rating float64
	wins   int
	losses int
	draws  int
	played int
}

// Result summarizes one replay run.
type Result struct {
	MatchesProcessed int
	TeamsUpdated     int
}

// Replay performs the chronological replay (backfill) mode: every team
// starts at StartingRating, matches for the current season are applied in
// (match_date asc, id asc) order, and the latest rating seen for a team on
// a given date is upserted into rank_history. After replay, final ratings
// and win/loss/draw tallies are written back to teams, and ranks are
// recomputed across both current ratings and every historical snapshot.
func Replay(ctx context.Context, pool *pgxpool.Pool, dryRun bool, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	matches, err := fetchCurrentSeasonMatches(ctx, pool)
	if err != nil {
		return Result{}, err
	}

	states := make(map[int64]*teamState)
	stateFor := func(teamID int64) *teamState {
		s, ok := states[teamID]
		if !ok {
			s = &teamState{rating: StartingRating}
			states[teamID] = s
		}
		return s
	}

	// snapshots[date][teamID] = latest rating seen for teamID on that date.
	snapshots := make(map[time.Time]map[int64]float64)

	for _, m := range matches {
		home := stateFor(m.HomeTeamID)
		away := stateFor(m.AwayTeamID)

		outcome := OutcomeFromScores(m.HomeScore, m.AwayScore)
		newHome, newAway := Update(home.rating, away.rating, outcome)

		home.rating = newHome
		away.rating = newAway
		home.played++
		away.played++
		switch outcome {
		case Win:
			home.wins++
			away.losses++
		case Loss:
			home.losses++
			away.wins++
		case Draw:
			home.draws++
			away.draws++
		}

		day := m.MatchDate
		if snapshots[day] == nil {
			snapshots[day] = make(map[int64]float64)
		}
		snapshots[day][m.HomeTeamID] = home.rating
		snapshots[day][m.AwayTeamID] = away.rating
	}

	if dryRun {
		return Result{MatchesProcessed: len(matches), TeamsUpdated: len(states)}, nil
	}

	if err := writeTeamTallies(ctx, pool, states); err != nil {
		return Result{}, err
	}
	if err := writeRankHistorySnapshots(ctx, pool, snapshots); err != nil {
		return Result{}, err
	}
	if err := RecomputeRanks(ctx, pool); err != nil {
		return Result{}, err
	}

	logger.Info("elo replay complete", "matches", len(matches), "teams", len(states))
	return Result{MatchesProcessed: len(matches), TeamsUpdated: len(states)}, nil
}

func fetchCurrentSeasonMatches(ctx context.Context, pool *pgxpool.Pool) ([]MatchRecord, error) {
	rows, err := pool.Query(ctx, `
		SELECT m.id, m.match_date, m.home_team_id, m.away_team_id, m.home_score, m.away_score
		FROM matches m
		LEFT JOIN leagues l ON l.id = m.league_id
		LEFT JOIN tournaments t ON t.id = m.tournament_id
		LEFT JOIN seasons s ON s.id = COALESCE(l.season_id, t.season_id)
		WHERE m.deleted_at IS NULL
		  AND m.home_score IS NOT NULL AND m.away_score IS NOT NULL
		  AND (s.is_current IS NULL OR s.is_current = true)
		ORDER BY m.match_date ASC, m.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetch current-season matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.ID, &m.MatchDate, &m.HomeTeamID, &m.AwayTeamID, &m.HomeScore, &m.AwayScore); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MatchDate.Equal(out[j].MatchDate) {
			return out[i].MatchDate.Before(out[j].MatchDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, rows.Err()
}

func writeTeamTallies(ctx context.Context, pool *pgxpool.Pool, states map[int64]*teamState) error {
	for teamID, s := range states {
		_, err := pool.Exec(ctx, `
			UPDATE teams
			SET elo_rating = $2, wins = $3, losses = $4, draws = $5, matches_played = $6, updated_at = NOW()
			WHERE id = $1`,
			teamID, s.rating, s.wins, s.losses, s.draws, s.played,
		)
		if err != nil {
			return fmt.Errorf("write team tally for %d: %w", teamID, err)
		}
	}
	return nil
}

func writeRankHistorySnapshots(ctx context.Context, pool *pgxpool.Pool, snapshots map[time.Time]map[int64]float64) error {
	for day, byTeam := range snapshots {
		for teamID, rating := range byTeam {
			_, err := pool.Exec(ctx, `
				INSERT INTO rank_history (team_id, snapshot_date, elo_rating)
				VALUES ($1, $2, $3)
				ON CONFLICT (team_id, snapshot_date) DO UPDATE SET elo_rating = EXCLUDED.elo_rating`,
				teamID, day, rating,
			)
			if err != nil {
				return fmt.Errorf("upsert rank history for team %d on %s: %w", teamID, day, err)
			}
		}
	}
	return nil
}

// RecomputeRanks applies rank computation to both the latest ratings (via
// the mv_current_rankings materialized view refresh) and every historical
// rank_history snapshot, in one correlated bulk UPDATE keyed by the
// (team_id, snapshot_date) composite primary key — the idiomatic Postgres
// equivalent of a CASE-keyed bulk update, since rank_history has no
// synthetic id column to key a literal CASE list on.
func RecomputeRanks(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		WITH ranked AS (
			SELECT
				rh.team_id,
				rh.snapshot_date,
				RANK() OVER (
					PARTITION BY rh.snapshot_date, t.birth_year, t.gender
					ORDER BY rh.elo_rating DESC, rh.team_id ASC
				) AS national_rank,
				RANK() OVER (
					PARTITION BY rh.snapshot_date, t.state, t.birth_year, t.gender
					ORDER BY rh.elo_rating DESC, rh.team_id ASC
				) AS state_rank
			FROM rank_history rh
			JOIN teams t ON t.id = rh.team_id
		)
		UPDATE rank_history rh
		SET elo_national_rank = ranked.national_rank, elo_state_rank = ranked.state_rank
		FROM ranked
		WHERE rh.team_id = ranked.team_id AND rh.snapshot_date = ranked.snapshot_date`)
	if err != nil {
		return fmt.Errorf("recompute rank history ranks: %w", err)
	}

	if _, err := pool.Exec(ctx, "refresh_views"); err != nil {
		return fmt.Errorf("refresh current-rankings view: %w", err)
	}
	return nil
}
