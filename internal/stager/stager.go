// Package stager is the append-only staging writer the scraping engine
// buffers normalized records into. The stager has no business logic: its
// only guarantee is exactly-once delivery per source_match_key via
// ON CONFLICT DO NOTHING, deferring to the validation pipeline's
// `processed` flag for the rest of the exactly-once contract.
package stager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/adapter"
)

// Row is one normalized match ready to be staged.
type Row struct {
	SourceMatchKey  string
	MatchDate       time.Time
	MatchTime       *time.Time
	HomeTeamName    string
	AwayTeamName    string
	HomeScore       *int
	AwayScore       *int
	EventName       string
	EventID         string
	SourcePlatform  string
	RawData         []byte
}

// FromNormalizedMatch builds a staging Row from an adapter's normalized
// record, computing its source_match_key via the adapter's template.
func FromNormalizedMatch(a *adapter.Adapter, m adapter.NormalizedMatch) (Row, error) {
	raw := m.Raw
	if raw == nil {
		var err error
		raw, err = json.Marshal(m)
		if err != nil {
			return Row{}, fmt.Errorf("marshal raw payload: %w", err)
		}
	}
	return Row{
		SourceMatchKey: a.FormatMatchKey(m.EventID, m.SourceMatchID),
		MatchDate:      m.MatchDate,
		MatchTime:      m.MatchTime,
		HomeTeamName:   m.HomeTeamName,
		AwayTeamName:   m.AwayTeamName,
		HomeScore:      m.HomeScore,
		AwayScore:      m.AwayScore,
		EventName:      m.EventName,
		EventID:        m.EventID,
		SourcePlatform: a.ID,
		RawData:        raw,
	}, nil
}

// Writer buffers rows and flushes them to staging_games in batches.
type Writer struct {
	pool      *pgxpool.Pool
	threshold int
	buffer    []Row
}

// NewWriter creates a Writer that flushes once buffer length reaches
// threshold, or on an explicit Flush call (e.g. end of event).
func NewWriter(pool *pgxpool.Pool, threshold int) *Writer {
	if threshold <= 0 {
		threshold = 100
	}
	return &Writer{pool: pool, threshold: threshold}
}

// Add buffers row, flushing automatically once the threshold is reached.
func (w *Writer) Add(ctx context.Context, row Row) (int, error) {
	w.buffer = append(w.buffer, row)
	if len(w.buffer) >= w.threshold {
		return w.Flush(ctx)
	}
	return 0, nil
}

// Flush bulk-upserts every buffered row in one pgx.Batch round trip and
// clears the buffer. Returns the number of rows sent (not the number
// actually inserted — duplicates are silently dropped by the database).
func (w *Writer) Flush(ctx context.Context) (int, error) {
	if len(w.buffer) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range w.buffer {
		batch.Queue(`
			INSERT INTO staging_games
				(source_match_key, match_date, match_time, home_team_name, away_team_name,
				 home_score, away_score, event_name, event_id, source_platform, raw_data)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (source_match_key) DO NOTHING`,
			row.SourceMatchKey, row.MatchDate, row.MatchTime, row.HomeTeamName, row.AwayTeamName,
			row.HomeScore, row.AwayScore, row.EventName, row.EventID, row.SourcePlatform, row.RawData,
		)
	}

	n := len(w.buffer)
	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("staging batch insert item %d: %w", i, err)
		}
	}

	w.buffer = w.buffer[:0]
	return n, nil
}

// Pending returns the number of rows currently buffered but not yet
// flushed.
func (w *Writer) Pending() int {
	return len(w.buffer)
}
