// Package resolver implements find-or-create team/event/club canonicalization
// for the validation pipeline: metadata parsing from raw names, the
// two-level lookup-then-create strategy, and the per-run cache that
// short-circuits repeated lookups within a single process.
package resolver

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

// Team is the canonical team row shape the resolver returns.
type Team struct {
	ID            int64
	CanonicalName string
	DisplayName   string
	BirthYear     *int
	Gender        nameparse.Gender
	State         string
	EloRating     float64
}

// Club is the canonical club row shape.
type Club struct {
	ID            int64
	DisplayName   string
	CanonicalName string
}

// EventRef identifies a resolved event and which table it lives in.
type EventRef struct {
	ID     int64
	IsLeague bool // true => leagues.id, false => tournaments.id
}

// Resolver holds the process-local, per-run cache and DB handle used by
// FindOrCreate{Team,Event,Club}. A Resolver must never be shared across
// runs — construct a fresh one per CLI invocation (or per worker goroutine
// when the validation pipeline fans out, see internal/validate).
type Resolver struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	seasonYear int

	teamCache  map[teamCacheKey]*Team
	eventCache map[eventCacheKey]*EventRef
	clubCache  map[string]*Club
}

type teamCacheKey struct {
	rawName        string
	sourcePlatform string
}

type eventCacheKey struct {
	sourceEventID  string
	sourcePlatform string
	name           string
}

// New creates a Resolver scoped to one validation run (or one worker
// goroutine within a run).
func New(pool *pgxpool.Pool, seasonYear int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		pool:       pool,
		logger:     logger,
		seasonYear: seasonYear,
		teamCache:  make(map[teamCacheKey]*Team),
		eventCache: make(map[eventCacheKey]*EventRef),
		clubCache:  make(map[string]*Club),
	}
}

