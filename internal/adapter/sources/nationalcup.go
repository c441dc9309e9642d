// nationalcup models a React/SPA tournament-bracket site that only renders
// match data client-side, exercising the adapter contract's browser
// transport mode.
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
	adapter.Register(nationalCupAdapter())
}

func nationalCupAdapter() *adapter.Adapter {
	return &adapter.Adapter{
		ID:        "nationalcup",
		Name:      "National Cup Series",
		BaseURL:   "https://bracket.nationalcup.example.com",
		Transport: adapter.TransportBrowser,
		RateLimit: adapter.RateLimitPolicy{
			MinRequestDelay:     1 * time.Second,
			MaxRequestDelay:     3 * time.Second,
			InterIterationDelay: 2 * time.Second,
			InterEventDelay:     5 * time.Second,
			MaxRetries:          3,
			RetryBackoff:        []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
			CooldownOn429:       60 * time.Second,
			CooldownOn5xx:       20 * time.Second,
		},
		UserAgents: []string{"Mozilla/5.0 (compatible; pitchsync-bot/1.0)"},
		Endpoints: map[string]string{
			"bracket": "/brackets/{event_id}",
		},
		MatchKeyFormat:     "{source}-{event_id}-{match_id}",
		CheckpointFilename: "nationalcup.checkpoint.json",
		StaticEvents: []adapter.Event{
			{SourceEventID: "spring-nationals", Name: "Spring Nationals", TypeHint: "tournament"},
			{SourceEventID: "fall-nationals", Name: "Fall Nationals", TypeHint: "tournament"},
		},
		Transform: adapter.TransformBundle{
			NormalizeName: strings.TrimSpace,
			InferState:    func(string) string { return "Unknown" },
		},
		Data: adapter.DataPolicy{
			EarliestAcceptedDate: time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC),
			MaxEventsPerRun:      50,
			IsValidMatch: func(m adapter.NormalizedMatch) bool {
				return m.HomeTeamName != "" && m.AwayTeamName != ""
			},
		},
		ScrapeEvent: nationalCupScrapeEvent,
	}
}

type nationalCupBracketMatch struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Home      string `json:"home"`
	Away      string `json:"away"`
	HomeScore *int   `json:"homeScore"`
	AwayScore *int   `json:"awayScore"`
	Division  string `json:"division"`
}

// nationalCupScrapeEvent drives the narrow browser collaborator: open the
// bracket page, wait for the client-rendered table, then pull the already
// client-side-computed match list out of the page's in-memory state via a
// single evaluate_in_page call instead of parsing rendered HTML.
func nationalCupScrapeEvent(ctx context.Context, eng adapter.Engine, ev adapter.Event) ([]adapter.NormalizedMatch, error) {
	sess := eng.Browser()
	defer sess.Close()

	url := "https://bracket.nationalcup.example.com/brackets/" + ev.SourceEventID
	if err := sess.Open(ctx, url, "[data-bracket-loaded]"); err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}

	raw, err := sess.EvaluateInPage(ctx, "window.__BRACKET_STATE__.matches")
	if err != nil {
		return nil, dberr.Mark(err, dberr.TransientNetwork)
	}

	var bracketMatches []nationalCupBracketMatch
	if err := json.Unmarshal(raw, &bracketMatches); err != nil {
		return nil, dberr.Mark(err, dberr.ParseError)
	}

	matches := make([]adapter.NormalizedMatch, 0, len(bracketMatches))
	for _, bm := range bracketMatches {
		matchDate, err := time.Parse("2006-01-02", bm.Date)
		if err != nil {
			continue
		}
		gender, ageGroup := splitDivision(bm.Division)
		matches = append(matches, adapter.NormalizedMatch{
			EventID:       ev.SourceEventID,
			EventName:     ev.Name,
			SourceMatchID: bm.ID,
			MatchDate:     matchDate,
			HomeTeamName:  strings.TrimSpace(bm.Home),
			AwayTeamName:  strings.TrimSpace(bm.Away),
			HomeScore:     bm.HomeScore,
			AwayScore:     bm.AwayScore,
			Status:        nationalCupStatus(bm),
			Division:      bm.Division,
			Gender:        gender,
			AgeGroup:      ageGroup,
		})
	}
	return matches, nil
}

func nationalCupStatus(bm nationalCupBracketMatch) adapter.MatchStatus {
	if bm.HomeScore != nil && bm.AwayScore != nil {
		return adapter.StatusCompleted
	}
	return adapter.StatusScheduled
}

// splitDivision parses strings like "Boys U15" into ("boys", "u15").
func splitDivision(division string) (gender, ageGroup string) {
	fields := strings.Fields(strings.ToLower(division))
	for _, f := range fields {
		switch f {
		case "boys", "girls":
			gender = f
		default:
			if strings.HasPrefix(f, "u") {
				ageGroup = f
			}
		}
	}
	return gender, ageGroup
}
