// Package db provides a pgxpool-based connection pool with prepared statement
// registration, health checking, and the pipeline write-authorization
// handshake canonical-table writes require.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements and acquire pipeline write authorization on
	// every new physical connection. The write-authorization token is
	// session-scoped (set_config(..., false)): it must be set on the exact
	// connection that later issues the INSERT/UPDATE, so it is granted once
	// here, at connection establishment, rather than per checkout — every
	// connection handed out by the pool is authorized for its whole
	// lifetime, whether the caller writes through pool.Exec, a pool-started
	// transaction, or an explicitly acquired conn.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := registerPreparedStatements(ctx, conn); err != nil {
			return err
		}
		return authorizePipelineWrites(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// authorizePipelineWrites acquires the session-scoped pipeline
// write-authorization token required before any INSERT/UPDATE on canonical
// tables (teams, matches, leagues, tournaments, aliases). Enforcement lives
// in a DB-side trigger installed by the migrations. Called once per physical
// connection from AfterConnect, since the token is set with set_config's
// is_local=false (session-scoped, not transaction-scoped).
func authorizePipelineWrites(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, "SELECT pg_advisory_lock_authorize_pipeline_writer()")
	if err != nil {
		return fmt.Errorf("authorize pipeline writes: %w", err)
	}
	return nil
}

// registerPreparedStatements registers statements shared across the
// pipeline CLI and the admin API.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"health_check": "SELECT 1",

		// Staging
		"staging_unprocessed_batch": `
			SELECT source_match_key, match_date, match_time, home_team_name, away_team_name,
			       home_score, away_score, event_name, event_id, source_platform, raw_data, scraped_at
			FROM staging_games
			WHERE processed = false AND ($1 = '' OR source_platform = $1)
			ORDER BY scraped_at
			LIMIT $2`,
		"staging_mark_processed": `
			UPDATE staging_games SET processed = true, processed_at = NOW(), error_message = $2
			WHERE source_match_key = $1`,

		// Teams
		"team_lookup_by_name_year": `
			SELECT id, canonical_name, birth_year, gender, state, elo_rating
			FROM teams
			WHERE lower(canonical_name) = lower($1) AND ($2::int IS NULL OR birth_year = $2)`,
		"team_lookup_by_id": `SELECT id, canonical_name, display_name, birth_year, gender, state, elo_rating FROM teams WHERE id = $1`,
		"team_candidates_contains_parts": `
			SELECT id, canonical_name, display_name, birth_year, gender, state, elo_rating
			FROM teams
			WHERE ($1::int IS NULL OR birth_year = $1)
			  AND canonical_name ILIKE ALL($2::text[])
			LIMIT 5`,

		// Aliases
		"alias_exact_lookup":  `SELECT team_id FROM team_name_aliases WHERE alias_name = lower(trim($1))`,
		"alias_trigram_top10": `
			SELECT team_id, alias_name, similarity(alias_name, $1) AS sim
			FROM team_name_aliases
			WHERE alias_name % $1
			ORDER BY sim DESC
			LIMIT 10`,
		"alias_insert": `
			INSERT INTO team_name_aliases (team_id, alias_name, source)
			VALUES ($1, lower(trim($2)), $3)
			ON CONFLICT (team_id, alias_name) DO NOTHING`,

		// Ambiguity queue
		"ambiguity_insert": `
			INSERT INTO ambiguous_match_queue
				(match_id, field_type, raw_name, candidate_1_team, candidate_1_sim, candidate_2_team, candidate_2_sim, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')`,
		"ambiguity_list_pending":  `SELECT id, match_id, field_type, raw_name, candidate_1_team, candidate_1_sim, candidate_2_team, candidate_2_sim, status, created_at FROM ambiguous_match_queue WHERE status = 'pending' ORDER BY created_at LIMIT $1`,
		"ambiguity_resolve":       `UPDATE ambiguous_match_queue SET status = 'resolved', resolved_team = $2, resolved_by = $3, resolved_at = NOW() WHERE id = $1 AND status = 'pending'`,
		"ambiguity_dismiss":       `UPDATE ambiguous_match_queue SET status = 'dismissed', resolved_by = $2, resolved_at = NOW() WHERE id = $1 AND status = 'pending'`,

		// Events
		"event_lookup_by_source": `SELECT id FROM leagues WHERE source_event_id = $1 AND source_platform = $2 UNION ALL SELECT id FROM tournaments WHERE source_event_id = $1 AND source_platform = $2 LIMIT 1`,
		"event_lookup_by_name":   `SELECT id FROM leagues WHERE lower(name) = lower($1) UNION ALL SELECT id FROM tournaments WHERE lower(name) = lower($1) LIMIT 1`,

		// Matches
		"match_upsert": `
			INSERT INTO matches (match_date, match_time, home_team_id, away_team_id, home_score, away_score,
			                      league_id, tournament_id, source_platform, source_match_key)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (source_match_key) DO UPDATE SET
				match_date = EXCLUDED.match_date,
				match_time = EXCLUDED.match_time,
				home_score = EXCLUDED.home_score,
				away_score = EXCLUDED.away_score,
				updated_at = NOW()`,

		// Materialized views
		"refresh_views": `REFRESH MATERIALIZED VIEW CONCURRENTLY mv_current_rankings`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
