package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/coaching-platform/internal/sessions"
)

func TestFilterConflictsBufferBoundaries(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	busy := []sessions.BusyInterval{{SessionID: "sess-1", Start: at(10, 0), End: at(11, 0)}}
	policy := Policy{BufferBefore: 15 * time.Minute, BufferAfter: 15 * time.Minute}

	got := filterConflicts([]time.Time{at(8, 45), at(9, 0), at(11, 0), at(11, 15)}, 60, busy, policy)
	require.Len(t, got, 4)

	assert.True(t, got[0].IsAvailable, "08:45-09:45 touches the buffered start")
	assert.False(t, got[1].IsAvailable, "09:00-10:00 overlaps 09:45")
	assert.Equal(t, ReasonSessionConflict, got[1].ConflictReason)
	assert.False(t, got[2].IsAvailable, "11:00 starts inside the after buffer")
	assert.True(t, got[3].IsAvailable, "11:15 touches the buffered end")
	assert.Empty(t, got[3].ConflictReason)
}

func TestFilterConflictsSetsEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	got := filterConflicts([]time.Time{start}, 90, nil, Policy{})
	require.Len(t, got, 1)
	assert.Equal(t, start.Add(90*time.Minute), got[0].End)
	assert.Equal(t, 90, got[0].Duration)
	assert.True(t, got[0].IsAvailable)
}

func TestFilterConflictsWithoutBuffers(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	busy := []sessions.BusyInterval{{Start: at(10, 0), End: at(11, 0)}}

	got := filterConflicts([]time.Time{at(9, 0), at(9, 30), at(11, 0)}, 60, busy, Policy{})
	assert.True(t, got[0].IsAvailable)
	assert.False(t, got[1].IsAvailable)
	assert.True(t, got[2].IsAvailable)
}
