// gotsport models a national tournament-hosting platform with a
// discoverable list of leagues and an optional standings table per event,
// exercising the adapter contract's StandingsCapability.
package sources

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pitchsync/pitchsync/internal/adapter"
	"github.com/pitchsync/pitchsync/internal/dberr"
)

func init() {
	a := gotsportAdapter()
	a.Standings = gotsportStandings{}
	adapter.Register(a)
}

func gotsportAdapter() *adapter.Adapter {
	return &adapter.Adapter{
		ID:        "gotsport",
		Name:      "GotSport",
		BaseURL:   "https://system.gotsport.example.com",
		Transport: adapter.TransportAPI,
		RateLimit: adapter.RateLimitPolicy{
			MinRequestDelay:     500 * time.Millisecond,
			MaxRequestDelay:     1500 * time.Millisecond,
			InterIterationDelay: 1 * time.Second,
			InterEventDelay:     3 * time.Second,
			MaxRetries:          5,
			RetryBackoff:        []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second},
			CooldownOn429:       45 * time.Second,
			CooldownOn5xx:       15 * time.Second,
		},
		UserAgents: []string{"pitchsync/1.0 (+gotsport-adapter)"},
		Endpoints: map[string]string{
			"events":    "/api/events",
			"matches":   "/api/events/{event_id}/matches",
			"standings": "/api/events/{event_id}/standings",
		},
		MatchKeyFormat:     "{source}-{event_id}-{match_id}",
		CheckpointFilename: "gotsport.checkpoint.json",
		DiscoverEvents:     gotsportDiscoverEvents,
		Transform: adapter.TransformBundle{
			NormalizeName: strings.TrimSpace,
			InferState:    func(string) string { return "Unknown" },
		},
		Data: adapter.DataPolicy{
			EarliestAcceptedDate: time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC),
			MaxEventsPerRun:      500,
			IsValidMatch: func(m adapter.NormalizedMatch) bool {
				return m.HomeTeamName != "" && m.AwayTeamName != ""
			},
		},
		ScrapeEvent: gotsportScrapeEvent,
	}
}

type gotsportEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state"`
}

type gotsportMatch struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time,omitempty"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeID    string `json:"home_team_id"`
	AwayID    string `json:"away_team_id"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
}

func gotsportDiscoverEvents(ctx context.Context, eng adapter.Engine) ([]adapter.Event, error) {
	body, status, err := eng.HTTPFetch(ctx, "GET", "/api/events", nil)
	if err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}
	if status >= 500 {
		return nil, dberr.Markf(dberr.ServerError, "gotsport events: status %d", status)
	}

	var events []gotsportEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, dberr.Mark(err, dberr.ParseError)
	}

	out := make([]adapter.Event, 0, len(events))
	for _, e := range events {
		out = append(out, adapter.Event{
			SourceEventID: e.ID,
			Name:          e.Name,
			TypeHint:      e.Type,
			State:         e.State,
		})
	}
	return out, nil
}

func gotsportScrapeEvent(ctx context.Context, eng adapter.Engine, ev adapter.Event) ([]adapter.NormalizedMatch, error) {
	path := "/api/events/" + ev.SourceEventID + "/matches"
	body, status, err := eng.HTTPFetch(ctx, "GET", path, nil)
	if err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}
	if status >= 500 {
		return nil, dberr.Markf(dberr.ServerError, "gotsport matches: status %d", status)
	}

	var raw []gotsportMatch
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, dberr.Mark(err, dberr.ParseError)
	}

	matches := make([]adapter.NormalizedMatch, 0, len(raw))
	for _, m := range raw {
		matchDate, err := time.Parse("2006-01-02", m.Date)
		if err != nil {
			continue
		}
		status := adapter.StatusScheduled
		if m.HomeScore != nil && m.AwayScore != nil {
			status = adapter.StatusCompleted
		}
		matches = append(matches, adapter.NormalizedMatch{
			EventID:       ev.SourceEventID,
			EventName:     ev.Name,
			SourceMatchID: m.ID,
			MatchDate:     matchDate,
			HomeTeamName:  strings.TrimSpace(m.HomeTeam),
			AwayTeamName:  strings.TrimSpace(m.AwayTeam),
			SourceHomeID:  m.HomeID,
			SourceAwayID:  m.AwayID,
			HomeScore:     m.HomeScore,
			AwayScore:     m.AwayScore,
			Status:        status,
		})
	}
	return matches, nil
}

// gotsportStandings implements adapter.StandingsCapability.
type gotsportStandings struct{}

type gotsportStandingsRow struct {
	TeamName string `json:"team_name"`
	TeamID   string `json:"team_id"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Points   int    `json:"points"`
}

func (gotsportStandings) DiscoverStandingsSources(ctx context.Context, eng adapter.Engine) ([]string, error) {
	events, err := gotsportDiscoverEvents(ctx, eng)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.SourceEventID)
	}
	return ids, nil
}

func (gotsportStandings) ScrapeStandingsSource(ctx context.Context, eng adapter.Engine, sourceID string) ([]adapter.StandingsRow, error) {
	path := "/api/events/" + sourceID + "/standings"
	body, status, err := eng.HTTPFetch(ctx, "GET", path, nil)
	if err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}
	if status >= 500 {
		return nil, dberr.Markf(dberr.ServerError, "gotsport standings: status %d", status)
	}

	var rows []gotsportStandingsRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, dberr.Mark(err, dberr.ParseError)
	}

	out := make([]adapter.StandingsRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, adapter.StandingsRow{
			SourceEventID: sourceID,
			TeamName:      r.TeamName,
			SourceTeamID:  r.TeamID,
			Wins:          r.Wins,
			Losses:        r.Losses,
			Draws:         r.Draws,
			Points:        r.Points,
		})
	}
	return out, nil
}
