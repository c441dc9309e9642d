package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pitchsync/pitchsync/internal/dberr"
	"github.com/pitchsync/pitchsync/internal/nameparse"
)

const level2ScoreThreshold = 0.6

// FindOrCreateTeam resolves rawName to a canonical team, following the
// five-step order from the team resolution spec: parse metadata, Level 1
// exact lookup, Level 2 scored candidate lookup, create, and retry-on-
// collision.
func (r *Resolver) FindOrCreateTeam(ctx context.Context, rawName, sourcePlatform string) (*Team, error) {
	key := teamCacheKey{rawName: rawName, sourcePlatform: sourcePlatform}
	if cached, ok := r.teamCache[key]; ok {
		return cached, nil
	}

	md := nameparse.Parse(rawName, r.seasonYear)

	team, err := r.level1Lookup(ctx, md.CanonicalName, md.BirthYear)
	if err != nil {
		return nil, err
	}

	if team == nil {
		team, err = r.level2Lookup(ctx, md)
		if err != nil {
			return nil, err
		}
	}

	if team == nil {
		team, err = r.createTeam(ctx, rawName, md, sourcePlatform)
		if err != nil {
			if isUniqueViolation(err) {
				// Duplicate-creation collision: another concurrent run won
				// the race. Retry the Level 1 lookup and reuse.
				team, err = r.level1Lookup(ctx, md.CanonicalName, md.BirthYear)
				if err != nil {
					return nil, err
				}
				if team == nil {
					return nil, dberr.Markf(dberr.ResolutionError, "team %q: create collided but level-1 retry found nothing", rawName)
				}
			} else {
				return nil, err
			}
		}
	}

	r.teamCache[key] = team
	return team, nil
}

// level1Lookup is case-insensitive equality on canonical_name filtered by
// birth_year if known. A unique match wins; more than one match is treated
// as "no unique match" since the team identity is ambiguous without
// another discriminator.
func (r *Resolver) level1Lookup(ctx context.Context, canonicalName string, birthYear *int) (*Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, canonical_name, display_name, birth_year, gender, state, elo_rating
		FROM teams
		WHERE lower(canonical_name) = lower($1)
		  AND ($2::int IS NULL OR birth_year = $2)
		  AND merged_into_team_id IS NULL`,
		canonicalName, birthYear,
	)
	if err != nil {
		return nil, fmt.Errorf("level1 team lookup: %w", err)
	}
	defer rows.Close()

	teams, err := scanTeams(rows)
	if err != nil {
		return nil, err
	}
	if len(teams) == 1 {
		return teams[0], nil
	}
	return nil, nil
}

// level2Lookup extracts key parts and scores up to 5 contains-all-key-parts
// candidates, accepting the top-scoring one if its score is >= 0.6.
func (r *Resolver) level2Lookup(ctx context.Context, md nameparse.Metadata) (*Team, error) {
	parts := nameparse.KeyParts(md.CanonicalName)
	if len(parts) < 2 {
		return nil, nil
	}

	patterns := make([]string, len(parts))
	for i, p := range parts {
		patterns[i] = "%" + p + "%"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, canonical_name, display_name, birth_year, gender, state, elo_rating
		FROM teams
		WHERE ($1::int IS NULL OR birth_year = $1)
		  AND canonical_name ILIKE ALL($2::text[])
		  AND merged_into_team_id IS NULL
		LIMIT 5`,
		md.BirthYear, patterns,
	)
	if err != nil {
		return nil, fmt.Errorf("level2 team candidate lookup: %w", err)
	}
	defer rows.Close()

	candidates, err := scanTeams(rows)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var best *Team
	var bestScore float64
	for _, c := range candidates {
		score := scoreLevel2Candidate(parts, md, c)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best != nil && bestScore >= level2ScoreThreshold {
		return best, nil
	}
	return nil, nil
}

// scoreLevel2Candidate implements: shared token ratio + 0.2 if birth_year
// matches + 0.2 * (matching numeric tokens ratio).
func scoreLevel2Candidate(queryParts []string, md nameparse.Metadata, candidate *Team) float64 {
	candParts := nameparse.KeyParts(candidate.CanonicalName)
	sharedRatio := tokenShareRatio(queryParts, candParts)

	score := sharedRatio
	if md.BirthYear != nil && candidate.BirthYear != nil && *md.BirthYear == *candidate.BirthYear {
		score += 0.2
	}

	numericRatio := numericTokenMatchRatio(queryParts, candParts)
	score += 0.2 * numericRatio

	return score
}

func tokenShareRatio(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[strings.ToLower(t)] = true
	}
	shared := 0
	for _, t := range a {
		if set[strings.ToLower(t)] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

func numericTokenMatchRatio(a, b []string) float64 {
	aNum := numericTokens(a)
	if len(aNum) == 0 {
		return 0
	}
	bSet := make(map[string]bool, len(b))
	for _, t := range numericTokens(b) {
		bSet[t] = true
	}
	matched := 0
	for _, t := range aNum {
		if bSet[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(aNum))
}

func numericTokens(tokens []string) []string {
	var nums []string
	for _, t := range tokens {
		if _, err := strconv.Atoi(t); err == nil {
			nums = append(nums, t)
		}
	}
	return nums
}

// createTeam inserts a new team row: state inferred from the adapter's
// source platform, Elo starting at the configured default, tallies zero.
func (r *Resolver) createTeam(ctx context.Context, rawName string, md nameparse.Metadata, sourcePlatform string) (*Team, error) {
	state := inferState(sourcePlatform)
	gender := dbGender(md.Gender)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO teams (
			canonical_name, display_name, birth_year, gender, state,
			birth_year_source, gender_source, age_group_source,
			data_quality_score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		md.CanonicalName, rawName, md.BirthYear, gender, state,
		string(md.BirthYearSource), string(md.GenderSource), string(md.AgeGroupSource),
		dataQualityScore(md),
	).Scan(&id)
	if err != nil {
		return nil, dberr.Mark(err, dberr.Conflict)
	}

	return &Team{
		ID:            id,
		CanonicalName: md.CanonicalName,
		DisplayName:   rawName,
		BirthYear:     md.BirthYear,
		Gender:        md.Gender,
		State:         state,
		EloRating:     1500,
	}, nil
}

// inferState infers a team's home state from its originating platform: a
// regional association's teams are all from that state, a national
// platform carries no such signal.
func inferState(sourcePlatform string) string {
	switch sourcePlatform {
	case "heartland":
		return "KS"
	default:
		return "Unknown"
	}
}

// dataQualityScore is a coarse completeness signal: full credit for a
// 4-digit year (least ambiguous), partial for the weaker parsing rules,
// none for unknown.
func dataQualityScore(md nameparse.Metadata) float64 {
	switch md.BirthYearSource {
	case nameparse.SourceParsed4Digit:
		return 1.0
	case nameparse.SourceParsed2Digit:
		return 0.8
	case nameparse.SourceParsedAgeGroup:
		return 0.6
	default:
		return 0.3
	}
}

func dbGender(g nameparse.Gender) string {
	switch g {
	case nameparse.GenderMale:
		return "male"
	case nameparse.GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

func scanTeams(rows pgx.Rows) ([]*Team, error) {
	var teams []*Team
	for rows.Next() {
		var t Team
		var genderStr string
		if err := rows.Scan(&t.ID, &t.CanonicalName, &t.DisplayName, &t.BirthYear, &genderStr, &t.State, &t.EloRating); err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		t.Gender = nameparse.Gender(genderStr)
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

