package fuzzymatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pitchsync/pitchsync/internal/config"
)

// AggressiveCandidate is one still-unlinked distinct name considered for
// the lower-threshold aggressive pass.
type AggressiveCandidate struct {
	RawName   string
	MatchID   *int64
	FieldType string
	State     string
}

// AggressiveResult pairs a candidate with its resolution outcome.
type AggressiveResult struct {
	Candidate AggressiveCandidate
	Outcome   Outcome
	Err       error
}

// RunAggressive resolves a bounded top-N set of high-value unlinked
// candidates at a lower similarity threshold, restricted by state, fanning
// out across a bounded ants worker pool. Downstream of the stager ordering
// is not guaranteed to matter, so concurrent resolution here does not
// violate any pipeline invariant.
func (m *Matcher) RunAggressive(ctx context.Context, candidates []AggressiveCandidate, workers int) ([]AggressiveResult, error) {
	if len(candidates) > config.AggressiveCandidateLimit {
		candidates = candidates[:config.AggressiveCandidateLimit]
	}
	if workers <= 0 {
		workers = 8
	}

	results := make([]AggressiveResult, len(candidates))
	var wg sync.WaitGroup

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create aggressive-mode worker pool: %w", err)
	}
	defer pool.Release()

	for i, c := range candidates {
		i, c := i, c
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			outcome, err := m.resolveAggressive(ctx, c)
			results[i] = AggressiveResult{Candidate: c, Outcome: outcome, Err: err}
		}); submitErr != nil {
			wg.Done()
			results[i] = AggressiveResult{Candidate: c, Err: fmt.Errorf("submit aggressive candidate: %w", submitErr)}
		}
	}

	wg.Wait()
	return results, nil
}

func (m *Matcher) resolveAggressive(ctx context.Context, c AggressiveCandidate) (Outcome, error) {
	lowered := c.RawName
	candidates, err := m.trigramCandidates(ctx, lowered, config.AggressiveSimilarityFloor, 10, c.State)
	if err != nil {
		return Outcome{}, err
	}
	candidates = m.filterByGuards(ctx, c.RawName, candidates)
	if len(candidates) == 0 {
		return Outcome{}, nil
	}

	// Aggressive mode restricts to the ceiling band as well as the floor,
	// so it never re-links a name Phase 3 would have already caught at the
	// standard threshold.
	filtered := candidates[:0:0]
	for _, cand := range candidates {
		if cand.similarity >= config.AggressiveSimilarityFloor && cand.similarity <= config.AggressiveSimilarityCeiling {
			filtered = append(filtered, cand)
		}
	}
	if len(filtered) == 0 {
		return Outcome{}, nil
	}

	return m.linkOrQueue(ctx, filtered, c.RawName, lowered, c.MatchID, c.FieldType)
}

// linkOrQueue applies the same top-two ambiguity-gap decision as phase3 to
// the aggressive path's filtered candidates; phase3 has its own copy of it.
func (m *Matcher) linkOrQueue(ctx context.Context, candidates []candidate, rawName, normalizedInput string, matchID *int64, fieldType string) (Outcome, error) {
	sortCandidatesDesc(candidates)

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

func sortCandidatesDesc(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].similarity < c[j].similarity; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}
