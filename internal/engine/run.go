// Package engine is the uniform orchestration layer every adapter runs
// under: event discovery, fetch (HTTP or headless browser), retry with
// backoff, rate limiting, checkpointing, failure logging, and batched
// staging writes.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/adapter"
	"github.com/pitchsync/pitchsync/internal/browser"
	"github.com/pitchsync/pitchsync/internal/stager"
)

// ExitReason is recorded in the terminal summary and governs the process
// exit code.
type ExitReason string

const (
	ExitCompleted ExitReason = "COMPLETED"
	ExitTimeout   ExitReason = "TIMEOUT"
	ExitFatal     ExitReason = "FATAL"
)

// Options configures one scraping run.
type Options struct {
	CheckpointDir  string
	TimeoutMinutes int
	EventFilter    string // restrict to a single source_event_id, "" = all
	Reset          bool
	ResumeOffset   *int
	BatchThreshold int
	DryRun         bool
}

// Result is the terminal summary: processed/skipped/failed, elapsed,
// reason.
type Result struct {
	Adapter    string
	Counters   Counters
	Elapsed    time.Duration
	ExitReason ExitReason
	Err        error
}

// runContext implements adapter.Engine, wiring the fetcher and (for
// browser-mode adapters) an adapter.BrowserSession together behind the one
// narrow interface an adapter's closures see.
type runContext struct {
	*fetcher
	session adapter.BrowserSession
}

func (r *runContext) Browser() adapter.BrowserSession {
	return r.session
}

// Run executes one scraping run for adapter a against pool, honoring opts.
func Run(ctx context.Context, pool *pgxpool.Pool, a *adapter.Adapter, opts Options, logger *slog.Logger) Result {
	start := time.Now()
	res := Result{Adapter: a.ID}

	if opts.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	if opts.Reset {
		if err := ResetCheckpoint(opts.CheckpointDir, a.CheckpointFilename); err != nil {
			res.Err = err
			res.ExitReason = ExitFatal
			return res
		}
	}

	cp, err := LoadCheckpoint(opts.CheckpointDir, a.CheckpointFilename)
	if err != nil {
		res.Err = err
		res.ExitReason = ExitFatal
		return res
	}
	if opts.ResumeOffset != nil {
		cp.Offset = *opts.ResumeOffset
	}

	failedLog, err := NewFailedLog(opts.CheckpointDir, a.ID)
	if err != nil {
		res.Err = err
		res.ExitReason = ExitFatal
		return res
	}

	rc := &runContext{fetcher: newFetcher(a.ID, a.BaseURL, a.RateLimit, a.UserAgents, logger)}
	if a.Transport == adapter.TransportBrowser {
		rc.session = browser.NewLoggingSession(a.ID, logger)
	}

	events, err := discoverEvents(ctx, a, rc, pool)
	if err != nil {
		res.Err = err
		res.ExitReason = ExitFatal
		return res
	}

	if opts.EventFilter != "" {
		events = filterEvents(events, opts.EventFilter)
	}
	if a.Data.MaxEventsPerRun > 0 && len(events) > a.Data.MaxEventsPerRun {
		events = events[:a.Data.MaxEventsPerRun]
	}
	if cp.Offset > 0 && cp.Offset < len(events) {
		events = events[cp.Offset:]
	}

	var writer *stager.Writer
	if !opts.DryRun {
		writer = stager.NewWriter(pool, opts.BatchThreshold)
	}

	counters := cp.Counters
	exitReason := ExitCompleted

eventLoop:
	for i, ev := range events {
		select {
		case <-ctx.Done():
			exitReason = ExitTimeout
			break eventLoop
		default:
		}

		matches, err := a.ScrapeEvent(ctx, rc, ev)
		if err != nil {
			logger.Error("event scrape failed", slog.String("adapter", a.ID), slog.String("event", ev.SourceEventID), slog.String("error", err.Error()))
			_ = failedLog.Append(FailedItem{
				AdapterID:  a.ID,
				UnitKind:   "event",
				UnitID:     ev.SourceEventID,
				EventID:    ev.SourceEventID,
				Reason:     err.Error(),
				Attempt:    1,
				OccurredAt: time.Now(),
			})
			counters.ItemsFailed++
			Metrics.Failed.WithLabelValues(a.ID).Inc()
			// A single event's failure never halts the run.
			advanceCheckpoint(opts.CheckpointDir, a, cp.Offset+i+1, ev.SourceEventID, counters)
			continue
		}

		for _, m := range matches {
			if a.Data.IsValidMatch != nil && !a.Data.IsValidMatch(m) {
				counters.ItemsSkipped++
				Metrics.Skipped.WithLabelValues(a.ID).Inc()
				continue
			}
			if !withinDataPolicy(a, m) {
				counters.ItemsSkipped++
				Metrics.Skipped.WithLabelValues(a.ID).Inc()
				continue
			}

			counters.ItemsProcessed++
			Metrics.Processed.WithLabelValues(a.ID).Inc()

			if writer == nil {
				continue
			}
			row, err := stager.FromNormalizedMatch(a, m)
			if err != nil {
				counters.ItemsFailed++
				continue
			}
			if _, err := writer.Add(ctx, row); err != nil {
				res.Err = err
				exitReason = ExitFatal
				break eventLoop
			}
		}

		// After each event, remaining buffer is flushed.
		if writer != nil {
			if _, err := writer.Flush(ctx); err != nil {
				res.Err = err
				exitReason = ExitFatal
				break eventLoop
			}
		}

		advanceCheckpoint(opts.CheckpointDir, a, cp.Offset+i+1, ev.SourceEventID, counters)

		if i < len(events)-1 {
			sleepInterEvent(ctx, a.RateLimit.InterEventDelay)
		}
	}

	if writer != nil {
		_, _ = writer.Flush(ctx)
	}
	if rc.session != nil {
		_ = rc.session.Close()
	}

	res.Counters = counters
	res.Elapsed = time.Since(start)
	res.ExitReason = exitReason
	return res
}

func discoverEvents(ctx context.Context, a *adapter.Adapter, rc adapter.Engine, pool *pgxpool.Pool) ([]adapter.Event, error) {
	events := make([]adapter.Event, 0, len(a.StaticEvents))
	events = append(events, a.StaticEvents...)

	if a.DiscoverEvents != nil {
		discovered, err := a.DiscoverEvents(ctx, rc)
		if err != nil {
			return nil, err
		}
		events = append(events, dedupeEvents(discovered, events)...)
	}

	dbEvents, err := activeEventsFromDB(ctx, pool, a.ID)
	if err != nil {
		return nil, err
	}
	events = append(events, dedupeEvents(dbEvents, events)...)

	return events, nil
}

func dedupeEvents(candidates, existing []adapter.Event) []adapter.Event {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.SourceEventID] = true
	}
	out := make([]adapter.Event, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.SourceEventID] {
			continue
		}
		seen[c.SourceEventID] = true
		out = append(out, c)
	}
	return out
}

// activeEventsFromDB adds database-derived active events (every league of
// the platform, plus its tournaments that ended within the last 30 days),
// per spec's "union of adapter discovery plus database-derived
// active events" event working set.
func activeEventsFromDB(ctx context.Context, pool *pgxpool.Pool, sourcePlatform string) ([]adapter.Event, error) {
	rows, err := pool.Query(ctx, `
		SELECT source_event_id, name, state FROM leagues
		WHERE source_platform = $1 AND source_event_id IS NOT NULL
		UNION ALL
		SELECT source_event_id, name, state FROM tournaments
		WHERE source_platform = $1 AND source_event_id IS NOT NULL
		  AND end_date >= CURRENT_DATE - INTERVAL '30 days'`,
		sourcePlatform,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []adapter.Event
	for rows.Next() {
		var ev adapter.Event
		if err := rows.Scan(&ev.SourceEventID, &ev.Name, &ev.State); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func filterEvents(events []adapter.Event, id string) []adapter.Event {
	for _, e := range events {
		if e.SourceEventID == id {
			return []adapter.Event{e}
		}
	}
	return nil
}

func withinDataPolicy(a *adapter.Adapter, m adapter.NormalizedMatch) bool {
	if m.MatchDate.Before(a.Data.EarliestAcceptedDate) {
		return false
	}
	if a.Data.LatestAcceptedDate != nil && m.MatchDate.After(*a.Data.LatestAcceptedDate) {
		return false
	}
	return true
}

func advanceCheckpoint(dir string, a *adapter.Adapter, offset int, lastItemID string, counters Counters) {
	_ = SaveCheckpoint(dir, a.CheckpointFilename, Checkpoint{
		Offset:     offset,
		LastItemID: lastItemID,
		Timestamp:  time.Now(),
		Counters:   counters,
	})
}

func sleepInterEvent(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
