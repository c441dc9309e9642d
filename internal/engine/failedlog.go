package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FailedItem is one line of the persistent failed_items log: a unit
// (team/event/division identifier) that could not be processed, kept for
// later retry rather than silently dropped.
type FailedItem struct {
	AdapterID  string    `json:"adapter_id"`
	UnitKind   string    `json:"unit_kind"`
	UnitID     string    `json:"unit_id"`
	EventID    string    `json:"event_id"`
	Reason     string    `json:"reason"`
	Attempt    int       `json:"attempt"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FailedLog appends FailedItem records to <checkpoint_dir>/<adapter_id>.failed.jsonl.
type FailedLog struct {
	path string
}

// NewFailedLog creates the log directory if needed and returns the
// failed-items log for one adapter; each Append opens (creating if needed)
// the log file itself.
func NewFailedLog(dir, adapterID string) (*FailedLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	return &FailedLog{path: filepath.Join(dir, adapterID+".failed.jsonl")}, nil
}

// Append writes one failure record, flushing immediately so a later crash
// doesn't lose it.
func (l *FailedLog) Append(item FailedItem) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open failed-items log %s: %w", l.path, err)
	}
	defer f.Close()

	line, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode failed item: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write failed item: %w", err)
	}
	return nil
}
