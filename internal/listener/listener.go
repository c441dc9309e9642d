// Package listener provides a Postgres LISTEN/NOTIFY consumer for
// ambiguity-queue alerts. It holds a dedicated pgx connection (not from the
// pool) listening on the `ambiguity_queue_entry` channel.
//
// When fuzzy matching diverts a row it can't confidently auto-link, the
// ambiguous_match_queue insert trigger fires pg_notify and this consumer
// receives the event and logs it for ops to pick up from the admin review
// queue. There is no push-notification fan-out here — review is pulled
// through the admin API, not pushed to end users.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	channel          = "ambiguity_queue_entry"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// AmbiguityEvent is the JSON payload from pg_notify('ambiguity_queue_entry', ...).
type AmbiguityEvent struct {
	ID              int64    `json:"id"`
	FieldType       string   `json:"field_type"`
	RawName         string   `json:"raw_name"`
	Candidate1Team  int64    `json:"candidate_1_team"`
	Candidate1Sim   float64  `json:"candidate_1_sim"`
	Candidate2Team  *int64   `json:"candidate_2_team"`
	Candidate2Sim   *float64 `json:"candidate_2_sim"`
	CreatedAt       string   `json:"created_at"`
}

// OnEntry is invoked for every ambiguity event received, after it has been
// logged. Tests and callers that want to react to new entries (e.g. an
// in-memory counter, a metrics increment) can supply one; production code
// can leave it nil.
type OnEntry func(AmbiguityEvent)

// Start opens a dedicated connection and listens on the ambiguity_queue_entry
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, onEntry OnEntry, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, onEntry, logger)
		if ctx.Err() != nil {
			logger.Info("ambiguity listener stopped (context cancelled)")
			return
		}

		logger.Error("ambiguity listener disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, onEntry OnEntry, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("ambiguity listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event AmbiguityEvent
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			logger.Warn("failed to parse ambiguity event", "payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("ambiguity queue entry",
			"id", event.ID,
			"field_type", event.FieldType,
			"raw_name", event.RawName,
			"candidate_1_team", event.Candidate1Team,
			"candidate_1_sim", event.Candidate1Sim)

		if onEntry != nil {
			onEntry(event)
		}
	}
}
