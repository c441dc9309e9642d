//go:build integration

package maintenance_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitchsync/pitchsync/internal/config"
	"github.com/pitchsync/pitchsync/internal/db"
	"github.com/pitchsync/pitchsync/internal/maintenance"
)

// TestRepairBirthYears_MergesIntoIdentityBlocker sets up a team whose name
// says 2013 but whose stored birth_year is still the wrong 2012, plus
// another team already correctly stamped 2013 under the same identity. The
// repair should merge the two, keep the team with more matches played as
// the survivor, and move the loser's match onto the survivor.
func TestRepairBirthYears_MergesIntoIdentityBlocker(t *testing.T) {
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

	var misparsedID, correctID, opponentID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, birth_year, gender, state, elo_rating, matches_played, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('rush soccer 2013', 'Rush Soccer 2013', 2012, 'male', 'KS', 1500, 1, 'parsed_4digit', 'unknown', 'unknown', 1.0)
		RETURNING id`).Scan(&misparsedID))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, birth_year, gender, state, elo_rating, matches_played, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('rush soccer 2013', 'Rush Soccer 2013', 2013, 'male', 'KS', 1550, 5, 'parsed_4digit', 'unknown', 'unknown', 1.0)
		RETURNING id`).Scan(&correctID))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO teams (canonical_name, display_name, birth_year, gender, state, elo_rating, matches_played, birth_year_source, gender_source, age_group_source, data_quality_score)
		VALUES ('sporting opponent 2013', 'Sporting Opponent 2013', 2013, 'male', 'KS', 1500, 1, 'parsed_4digit', 'unknown', 'unknown', 1.0)
		RETURNING id`).Scan(&opponentID))

	// misparsedID already played opponentID once; correctID never played
	// opponentID, so when misparsedID merges into correctID this match is
	// rewritten onto correctID rather than soft-deleted as a duplicate.
	_, err = pool.Exec(ctx, `
		INSERT INTO matches (home_team_id, away_team_id, match_date, home_score, away_score, source_platform)
		VALUES ($1, $2, '2025-03-01', 2, 1, 'test')`, misparsedID, opponentID)
	require.NoError(t, err)

	result, err := maintenance.RepairBirthYears(ctx, pool.Pool, false, slog.Default())
	require.NoError(t, err)
	require.Equal(t, 1, result.Candidates, "only the misparsed team has a birth_year disagreeing with its name")
	require.Equal(t, 1, result.Merged)
	require.Equal(t, 1, result.Updated)

	var mergedInto *int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT merged_into_team_id FROM teams WHERE id = $1`, misparsedID).Scan(&mergedInto))
	require.NotNil(t, mergedInto)
	require.Equal(t, correctID, *mergedInto, "the team with more matches played survives the merge")

	var remainingMatches int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM matches
		WHERE deleted_at IS NULL AND (home_team_id = $1 OR away_team_id = $1)`, misparsedID).Scan(&remainingMatches))
	require.Equal(t, 0, remainingMatches, "all of the loser's matches were rewritten or soft-deleted")
}
