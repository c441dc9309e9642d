package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedLog_AppendsOneLinePerFailure(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFailedLog(dir, "heartland")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(FailedItem{
			AdapterID:  "heartland",
			UnitKind:   "event",
			UnitID:     "evt-1",
			Reason:     "boom",
			Attempt:    i + 1,
			OccurredAt: time.Now(),
		}))
	}

	f, err := os.Open(filepath.Join(dir, "heartland.failed.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var item FailedItem
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		lines++
	}
	assert.Equal(t, 3, lines)
}
