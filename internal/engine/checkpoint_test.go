package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Checkpoint{
		Offset:     7,
		LastItemID: "evt-42",
		Timestamp:  time.Now().Truncate(time.Second),
		Counters:   Counters{Requests: 10, ItemsProcessed: 5},
	}

	require.NoError(t, SaveCheckpoint(dir, "adapter.checkpoint.json", want))

	got, err := LoadCheckpoint(dir, "adapter.checkpoint.json")
	require.NoError(t, err)
	assert.Equal(t, want.Offset, got.Offset)
	assert.Equal(t, want.LastItemID, got.LastItemID)
	assert.Equal(t, want.Counters, got.Counters)
}

func TestCheckpoint_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cp, err := LoadCheckpoint(dir, "missing.checkpoint.json")
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{}, cp)
}

func TestResetCheckpoint_DeletesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveCheckpoint(dir, "a.checkpoint.json", Checkpoint{Offset: 3}))
	require.NoError(t, ResetCheckpoint(dir, "a.checkpoint.json"))

	cp, err := LoadCheckpoint(dir, "a.checkpoint.json")
	require.NoError(t, err)
	assert.Equal(t, 0, cp.Offset)
}

func TestResetCheckpoint_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ResetCheckpoint(dir, "never-existed.checkpoint.json"))
}
