//go:build integration

package fuzzymatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitchsync/pitchsync/internal/config"
	"github.com/pitchsync/pitchsync/internal/db"
	"github.com/pitchsync/pitchsync/internal/fuzzymatch"
)

// TestResolve_Phase3_SelfHealing spins up a real Postgres with pg_trgm and
// verifies that a fuzzy match on the second identical input resolves via
// the alias learned by the first.
func TestResolve_Phase3_SelfHealing(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pitchsync_test"),
		postgres.WithUsername("pitchsync"),
		postgres.WithPassword("pitchsync"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := db.New(ctx, &config.Config{DatabaseURL: connStr, DBPoolMinConns: 1, DBPoolMaxConns: 4, DBPoolMaxLife: time.Hour})
	require.NoError(t, err)
	defer pool.Close()

	var teamID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, birth_year, gender, state, elo_rating, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('sporting bv pre-nal 2014', 'Sporting BV Pre-NAL 2014', 2014, 'male', 'KS', 1500, 'parsed_4digit', 'unknown', 'unknown', 1.0)
		RETURNING id`).Scan(&teamID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO team_name_aliases (team_id, alias_name, source) VALUES ($1, 'sporting bv pre-nal 2014', 'canonical')`, teamID)
	require.NoError(t, err)

	matcher := fuzzymatch.New(pool.Pool, config.DefaultSimilarityThreshold, config.DefaultAmbiguityGap, nil)

	outcome, err := matcher.Resolve(ctx, "Sporting BV Pre NAL 2014 (Black)", nil, "home")
	require.NoError(t, err)
	require.True(t, outcome.Linked)
	require.Equal(t, teamID, outcome.TeamID)
	require.True(t, outcome.AliasLearned)

	second, err := matcher.Resolve(ctx, "sporting bv pre nal 2014 (black)", nil, "home")
	require.NoError(t, err)
	require.True(t, second.Linked)
	require.Equal(t, teamID, second.TeamID)
	require.False(t, second.AliasLearned, "second identical input should hit the learned alias via phase 1, not relearn it")
}

// TestResolve_AmbiguityGap verifies that two near-equidistant candidates
// divert to the ambiguity queue instead of auto-linking.
func TestResolve_AmbiguityGap(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pitchsync_test"),
		postgres.WithUsername("pitchsync"),
		postgres.WithPassword("pitchsync"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(connStr))

	pool, err := db.New(ctx, &config.Config{DatabaseURL: connStr, DBPoolMinConns: 1, DBPoolMaxConns: 4, DBPoolMaxLife: time.Hour})
	require.NoError(t, err)
	defer pool.Close()

	var teamA, teamB int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, elo_rating, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('rush soccer east', 'Rush Soccer East', 1500, 'unknown', 'unknown', 'unknown', 0.3) RETURNING id`).Scan(&teamA))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, elo_rating, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('rush soccer west', 'Rush Soccer West', 1500, 'unknown', 'unknown', 'unknown', 0.3) RETURNING id`).Scan(&teamB))

	_, err = pool.Exec(ctx, `
		INSERT INTO team_name_aliases (team_id, alias_name, source) VALUES ($1, 'rush soccer east', 'canonical'), ($2, 'rush soccer west', 'canonical')`,
		teamA, teamB)
	require.NoError(t, err)

	matcher := fuzzymatch.New(pool.Pool, 0.3, config.DefaultAmbiguityGap, nil)

	outcome, err := matcher.Resolve(ctx, "Rush Soccer", nil, "away")
	require.NoError(t, err)
	require.True(t, outcome.Ambiguous)
	require.False(t, outcome.Linked)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM ambiguous_match_queue WHERE status = 'pending'`).Scan(&count))
	require.Equal(t, 1, count)
}
