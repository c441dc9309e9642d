// Package fuzzymatch links an unlinked raw team name to a canonical team
// using the alias table, in three phases of increasing cost: exact alias
// equality, normalized-input equality, and trigram similarity guarded by
// year/gender agreement and an ambiguity gap.
package fuzzymatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

// Outcome describes how (or whether) a raw name resolved to a team.
type Outcome struct {
	TeamID       int64
	Linked       bool
	Ambiguous    bool
	AliasLearned bool
}

// Matcher runs the three-phase resolution against team_name_aliases.
type Matcher struct {
	pool               *pgxpool.Pool
	logger             *slog.Logger
	similarityThreshold float64
	ambiguityGap       float64
}

// New creates a Matcher with the configured similarity threshold and
// ambiguity gap (see internal/config defaults).
func New(pool *pgxpool.Pool, similarityThreshold, ambiguityGap float64, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{pool: pool, logger: logger, similarityThreshold: similarityThreshold, ambiguityGap: ambiguityGap}
}

type candidate struct {
	teamID     int64
	aliasName  string
	similarity float64
}

// Resolve runs phases 1-3 against rawName. matchID is used only to attach
// an ambiguity-queue entry when the outcome is ambiguous; fieldType is
// "home" or "away".
func (m *Matcher) Resolve(ctx context.Context, rawName string, matchID *int64, fieldType string) (Outcome, error) {
	lowered := strings.ToLower(strings.TrimSpace(rawName))

	// Phase 1 — exact alias equality.
	if teamID, ok, err := m.exactAlias(ctx, lowered); err != nil {
		return Outcome{}, err
	} else if ok {
		return Outcome{TeamID: teamID, Linked: true}, nil
	}

	// Phase 2 — normalized-input equality, tried in the order the spec
	// lists the three transforms.
	for _, normalized := range Transforms(rawName) {
		normalized = strings.ToLower(normalized)
		if normalized == lowered {
			continue // identical to the already-tried raw lowercase form
		}
		if teamID, ok, err := m.exactAlias(ctx, normalized); err != nil {
			return Outcome{}, err
		} else if ok {
			return Outcome{TeamID: teamID, Linked: true}, nil
		}
	}

	// Phase 3 — trigram fuzzy.
	return m.phase3(ctx, rawName, lowered, matchID, fieldType, m.similarityThreshold, 10, "")
}

func (m *Matcher) exactAlias(ctx context.Context, name string) (int64, bool, error) {
	var teamID int64
	err := m.pool.QueryRow(ctx, `SELECT team_id FROM team_name_aliases WHERE alias_name = $1 LIMIT 1`, name).Scan(&teamID)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("exact alias lookup: %w", err)
	}
	return teamID, true, nil
}

// phase3 retrieves up to limit alias candidates with trigram similarity >=
// threshold, drops any with disagreeing year/gender indicators, then
// applies the top-two ambiguity gap test.
func (m *Matcher) phase3(ctx context.Context, rawName, normalizedInput string, matchID *int64, fieldType string, threshold float64, limit int, stateFilter string) (Outcome, error) {
	candidates, err := m.trigramCandidates(ctx, normalizedInput, threshold, limit, stateFilter)
	if err != nil {
		return Outcome{}, err
	}

	candidates = m.filterByGuards(ctx, rawName, candidates)

	if len(candidates) == 0 {
		return Outcome{}, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })

	top := candidates[0]
	if len(candidates) >= 2 {
		second := candidates[1]
		if top.similarity-second.similarity < m.ambiguityGap {
			if err := m.enqueueAmbiguity(ctx, matchID, fieldType, rawName, top, &second); err != nil {
				return Outcome{}, err
			}
			return Outcome{Ambiguous: true}, nil
		}
	}

	if err := m.learnAlias(ctx, top.teamID, normalizedInput); err != nil {
		return Outcome{}, err
	}
	return Outcome{TeamID: top.teamID, Linked: true, AliasLearned: true}, nil
}

func (m *Matcher) trigramCandidates(ctx context.Context, normalizedInput string, threshold float64, limit int, stateFilter string) ([]candidate, error) {
	query := `
		SELECT a.team_id, a.alias_name, similarity(a.alias_name, $1) AS sim
		FROM team_name_aliases a`
	args := []interface{}{normalizedInput}
	where := []string{"a.alias_name % $1", "similarity(a.alias_name, $1) >= $2"}
	args = append(args, threshold)

	if stateFilter != "" {
		query += ` JOIN teams t ON t.id = a.team_id`
		where = append(where, fmt.Sprintf("t.state = $%d", len(args)+1))
		args = append(args, stateFilter)
	}

	query += " WHERE " + strings.Join(where, " AND ")
	query += fmt.Sprintf(" ORDER BY sim DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := m.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trigram candidate lookup: %w", err)
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.teamID, &c.aliasName, &c.similarity); err != nil {
			return nil, fmt.Errorf("scan trigram candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// filterByGuards drops candidates whose extracted 4-digit year or gender
// indicator disagrees with the input's, when both exist.
func (m *Matcher) filterByGuards(ctx context.Context, rawName string, candidates []candidate) []candidate {
	inputYear, hasInputYear := nameparse.ExtractFourDigitYear(rawName)
	inputGender := nameparse.ExtractGenderIndicator(rawName)

	out := candidates[:0:0]
	for _, c := range candidates {
		if hasInputYear {
			if candYear, ok := nameparse.ExtractFourDigitYear(c.aliasName); ok && candYear != inputYear {
				continue
			}
		}
		if inputGender != nameparse.GenderUnknown {
			if candGender := nameparse.ExtractGenderIndicator(c.aliasName); candGender != nameparse.GenderUnknown && candGender != inputGender {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (m *Matcher) enqueueAmbiguity(ctx context.Context, matchID *int64, fieldType, rawName string, top candidate, second *candidate) error {
	var secondTeam *int64
	var secondSim *float64
	if second != nil {
		secondTeam = &second.teamID
		secondSim = &second.similarity
	}
	_, err := m.pool.Exec(ctx, `
		INSERT INTO ambiguous_match_queue
			(match_id, field_type, raw_name, candidate_1_team, candidate_1_sim, candidate_2_team, candidate_2_sim, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending')`,
		matchID, fieldType, rawName, top.teamID, top.similarity, secondTeam, secondSim,
	)
	if err != nil {
		return fmt.Errorf("enqueue ambiguity: %w", err)
	}
	return nil
}

// learnAlias emits the self-healing fuzzy_learned alias so a second
// identical input resolves via Phase 1.
func (m *Matcher) learnAlias(ctx context.Context, teamID int64, normalizedInput string) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO team_name_aliases (team_id, alias_name, source)
		VALUES ($1, lower(trim($2)), 'fuzzy_learned')
		ON CONFLICT (team_id, alias_name) DO NOTHING`,
		teamID, normalizedInput,
	)
	if err != nil {
		return fmt.Errorf("learn alias: %w", err)
	}
	return nil
}
