// Package sources holds the concrete adapter implementations registered
// into internal/adapter's registry.
//
// heartland models a regional association platform (Kansas heartland
// leagues) that exposes a flat JSON REST API with cursor pagination. Every
// team fielded under it is inferred to be based in Kansas absent other
// information.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pitchsync/pitchsync/internal/adapter"
	"github.com/pitchsync/pitchsync/internal/dberr"
)

func init() {
	adapter.Register(heartlandAdapter())
}

func heartlandAdapter() *adapter.Adapter {
	return &adapter.Adapter{
		ID:        "heartland",
		Name:      "Heartland Soccer Association",
		BaseURL:   "https://api.heartlandsoccer.example.com",
		Transport: adapter.TransportAPI,
		RateLimit: adapter.RateLimitPolicy{
			MinRequestDelay:     300 * time.Millisecond,
			MaxRequestDelay:     900 * time.Millisecond,
			InterIterationDelay: 1 * time.Second,
			InterEventDelay:     2 * time.Second,
			MaxRetries:          4,
			RetryBackoff:        []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
			CooldownOn429:       30 * time.Second,
			CooldownOn5xx:       10 * time.Second,
		},
		UserAgents: []string{"pitchsync/1.0 (+heartland-adapter)"},
		Endpoints: map[string]string{
			"events":  "/v2/divisions",
			"matches": "/v2/divisions/{event_id}/games",
		},
		MatchKeyFormat:     "{source}-{event_id}-{match_id}",
		CheckpointFilename: "heartland.checkpoint.json",
		DiscoverEvents:     heartlandDiscoverEvents,
		Transform: adapter.TransformBundle{
			NormalizeName: strings.TrimSpace,
			InferState:    func(string) string { return "KS" },
		},
		Data: adapter.DataPolicy{
			EarliestAcceptedDate: time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
			MaxEventsPerRun:      200,
			IsValidMatch: func(m adapter.NormalizedMatch) bool {
				return m.HomeTeamName != "" && m.AwayTeamName != ""
			},
		},
		ScrapeEvent: heartlandScrapeEvent,
	}
}

type heartlandDivision struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type heartlandGame struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time,omitempty"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
	Status    string `json:"status"`
}

type heartlandPage struct {
	Games      []heartlandGame `json:"games"`
	NextCursor string          `json:"next_cursor"`
}

func heartlandDiscoverEvents(ctx context.Context, eng adapter.Engine) ([]adapter.Event, error) {
	body, status, err := eng.HTTPFetch(ctx, "GET", "/v2/divisions", nil)
	if err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}
	if status >= 500 {
		return nil, dberr.Markf(dberr.ServerError, "heartland divisions: status %d", status)
	}

	var divisions []heartlandDivision
	if err := json.Unmarshal(body, &divisions); err != nil {
		return nil, dberr.Mark(err, dberr.ParseError)
	}

	events := make([]adapter.Event, 0, len(divisions))
	for _, d := range divisions {
		events = append(events, adapter.Event{
			SourceEventID: d.ID,
			Name:          d.Name,
			TypeHint:      "league",
			State:         d.State,
		})
	}
	return events, nil
}

func heartlandScrapeEvent(ctx context.Context, eng adapter.Engine, ev adapter.Event) ([]adapter.NormalizedMatch, error) {
	var matches []adapter.NormalizedMatch
	cursor := ""

	for {
		path := "/v2/divisions/" + ev.SourceEventID + "/games"
		if cursor != "" {
			path += "?cursor=" + cursor
		}

		body, status, err := eng.HTTPFetch(ctx, "GET", path, nil)
		if err != nil {
			return matches, dberr.Mark(err, dberr.TransientNetwork)
		}
		if status == 429 {
			return matches, dberr.Mark(fmt.Errorf("heartland rate limited"), dberr.RateLimited)
		}
		if status >= 500 {
			return matches, dberr.Markf(dberr.ServerError, "heartland games: status %d", status)
		}

		var page heartlandPage
		if err := json.Unmarshal(body, &page); err != nil {
			return matches, dberr.Mark(err, dberr.ParseError)
		}

		for _, g := range page.Games {
			matchDate, err := time.Parse("2006-01-02", g.Date)
			if err != nil {
				continue
			}
			matches = append(matches, adapter.NormalizedMatch{
				EventID:       ev.SourceEventID,
				EventName:     ev.Name,
				SourceMatchID: g.ID,
				MatchDate:     matchDate,
				MatchTime:     heartlandParseTime(g.Time),
				HomeTeamName:  strings.TrimSpace(g.HomeTeam),
				AwayTeamName:  strings.TrimSpace(g.AwayTeam),
				HomeScore:     g.HomeScore,
				AwayScore:     g.AwayScore,
				Status:        heartlandStatus(g),
				Raw:           heartlandMustMarshal(g),
			})
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return matches, nil
}

func heartlandParseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return nil
	}
	return &t
}

func heartlandStatus(g heartlandGame) adapter.MatchStatus {
	if g.HomeScore != nil && g.AwayScore != nil {
		return adapter.StatusCompleted
	}
	switch strings.ToLower(g.Status) {
	case "in_progress", "live":
		return adapter.StatusInProgress
	default:
		return adapter.StatusScheduled
	}
}

func heartlandMustMarshal(g heartlandGame) []byte {
	b, err := json.Marshal(g)
	if err != nil {
		return nil
	}
	return b
}

