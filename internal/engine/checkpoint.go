package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the durable state recording the position of the current
// scraping run, written atomically after each event (succeeded or failed)
// with the offset of the next event to process.
type Checkpoint struct {
	Offset     int       `json:"offset"`
	LastItemID string    `json:"last_item_id"`
	Timestamp  time.Time `json:"timestamp"`
	Counters   Counters  `json:"counters"`
}

// LoadCheckpoint reads a checkpoint file; a missing file is not an error,
// it simply means the run starts from offset zero.
func LoadCheckpoint(dir, filename string) (Checkpoint, error) {
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return cp, nil
}

// SaveCheckpoint writes cp atomically: write to a temp file in the same
// directory, then rename over the destination, so a crash mid-write never
// leaves a corrupt checkpoint behind.
func SaveCheckpoint(dir, filename string, cp Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	path := filepath.Join(dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

// ResetCheckpoint deletes the checkpoint file for --reset.
func ResetCheckpoint(dir, filename string) error {
	path := filepath.Join(dir, filename)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint %s: %w", path, err)
	}
	return nil
}
