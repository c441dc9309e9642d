// Package adapter defines the per-source scraping contract: identity, rate
// limits, endpoint templates, and the closures that produce normalized
// match records. The scraping engine depends only on this interface and
// never knows about a specific source's HTML/JSON shape.
package adapter

import (
	"context"
	"strings"
	"time"
)

// TransportMode selects which fetch path the engine drives for a source.
type TransportMode string

const (
	TransportAPI     TransportMode = "api"
	TransportBrowser TransportMode = "browser"
)

// MatchStatus mirrors the normalized match record's lifecycle state.
type MatchStatus string

const (
	StatusScheduled  MatchStatus = "scheduled"
	StatusInProgress MatchStatus = "in_progress"
	StatusCompleted  MatchStatus = "completed"
)

// RateLimitPolicy governs request pacing and backoff for one source.
type RateLimitPolicy struct {
	MinRequestDelay  time.Duration
	MaxRequestDelay  time.Duration
	InterIterationDelay time.Duration
	InterEventDelay  time.Duration
	MaxRetries       int
	RetryBackoff     []time.Duration // schedule, index by attempt number
	CooldownOn429    time.Duration
	CooldownOn5xx    time.Duration
}

// DataPolicy bounds which records a source's scrape is allowed to emit.
type DataPolicy struct {
	EarliestAcceptedDate time.Time
	LatestAcceptedDate   *time.Time // nil = unbounded
	MaxEventsPerRun      int
	IsValidMatch         func(NormalizedMatch) bool
}

// TransformBundle groups the pure parsing functions an adapter supplies for
// turning raw source fields into normalized ones. Every field is optional.
// The engine, stager and validation pipeline do not call these functions:
// each adapter's scrape closure parses its own fields, and the resolver
// infers team state from the source platform id.
type TransformBundle struct {
	NormalizeName    func(raw string) string
	ParseDivision    func(division string) (gender, ageGroup string)
	ParseDateTime    func(raw string) (date time.Time, hasTime bool, timeOfDay time.Time, err error)
	ParseScore       func(raw string) (score *int, err error)
	InferState       func(sourceTeamID string) string
}

// Event is a discovered unit of work: one league division, one tournament
// bracket, one season slate — whatever granularity the source organizes
// matches by.
type Event struct {
	SourceEventID string
	Name          string
	TypeHint      string // "league" | "tournament" | ""
	State         string
}

// NormalizedMatch is the record shape every adapter emits to the engine,
// regardless of source format.
type NormalizedMatch struct {
	EventID        string
	EventName      string
	SourceMatchID  string
	MatchDate      time.Time
	MatchTime      *time.Time
	HomeTeamName   string
	AwayTeamName   string
	HomeScore      *int
	AwayScore      *int
	SourceHomeID   string
	SourceAwayID   string
	Status         MatchStatus
	Location       string
	Division       string
	Gender         string
	AgeGroup       string
	Raw            []byte
}

// StandingsRow is one row of a source's standings table, when the optional
// standings capability is present.
type StandingsRow struct {
	SourceEventID string
	TeamName      string
	SourceTeamID  string
	Wins          int
	Losses        int
	Draws         int
	Points        int
}

// Engine is the narrow surface an adapter's closures are handed back,
// avoiding a direct import cycle between adapter and engine.
type Engine interface {
	HTTPFetch(ctx context.Context, method, url string, headers map[string]string) ([]byte, int, error)
	Browser() BrowserSession
}

// BrowserSession is the narrow headless-browser collaborator interface
// named in the design notes: open, evaluate, close. A real implementation
// is an external collaborator the engine drives without knowing browser
// semantics; pitchsync ships a logging stub (see internal/browser) rather
// than a bundled automation library.
type BrowserSession interface {
	Open(ctx context.Context, url, waitSelector string) error
	EvaluateInPage(ctx context.Context, script string) ([]byte, error)
	Close() error
}

// StandingsCapability is implemented by adapters that can also produce
// standings tables, not just match results.
type StandingsCapability interface {
	DiscoverStandingsSources(ctx context.Context, eng Engine) ([]string, error)
	ScrapeStandingsSource(ctx context.Context, eng Engine, sourceID string) ([]StandingsRow, error)
}

// Adapter is the declarative description plus scraping logic for one
// external source.
type Adapter struct {
	ID       string
	Name     string
	BaseURL  string
	Transport TransportMode

	RateLimit RateLimitPolicy
	UserAgents []string

	// Endpoints keyed by role, e.g. "events", "matches", "standings".
	Endpoints map[string]string

	// MatchKeyFormat is a template such as "{source}-{event_id}-{match_id}".
	MatchKeyFormat string

	StaticEvents   []Event
	DiscoverEvents func(ctx context.Context, eng Engine) ([]Event, error)

	Transform TransformBundle
	Data      DataPolicy

	CheckpointFilename string

	ScrapeEvent func(ctx context.Context, eng Engine, ev Event) ([]NormalizedMatch, error)

	// Standings is nil unless the adapter implements StandingsCapability.
	Standings StandingsCapability
}

// FormatMatchKey renders MatchKeyFormat with the adapter's source id, the
// event id, and the match id. This package has no inverse that parses a
// key back into its (eventID, matchID) pair.
func (a Adapter) FormatMatchKey(eventID, matchID string) string {
	return renderTemplate(a.MatchKeyFormat, map[string]string{
		"source":   a.ID,
		"event_id": eventID,
		"match_id": matchID,
	})
}

func renderTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
