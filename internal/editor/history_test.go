package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/layout"
)

func snap(rowHeight int) Snapshot {
	return Snapshot{
		Layouts: layout.NewLayouts(),
		Grids:   layout.Profiles{layout.Desktop: {Columns: 12, RowHeightPx: rowHeight}},
	}
}

func rowHeight(s Snapshot) int { return s.Grids[layout.Desktop].RowHeightPx }

func TestHistory_EmptyCannotMove(t *testing.T) {
	h := NewHistory(5)

	assert.Equal(t, -1, h.Index())
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, ok := h.Undo(snap(1))
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestHistory_UndoRecordsLiveStateForRedo(t *testing.T) {
	h := NewHistory(5)
	h.Push(snap(20))
	h.Push(snap(21))

	got, ok := h.Undo(snap(22))
	require.True(t, ok)
	assert.Equal(t, 21, rowHeight(got))
	assert.Equal(t, 3, h.Len())

	got, ok = h.Undo(snap(99))
	require.True(t, ok)
	assert.Equal(t, 20, rowHeight(got))
	assert.False(t, h.CanUndo())

	got, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, 21, rowHeight(got))
	got, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, 22, rowHeight(got))
	assert.False(t, h.CanRedo())
}

func TestHistory_PushDiscardsRedoBranch(t *testing.T) {
	h := NewHistory(5)
	h.Push(snap(20))
	h.Push(snap(21))
	_, ok := h.Undo(snap(22))
	require.True(t, ok)
	require.True(t, h.CanRedo())

	h.Push(snap(30))

	assert.False(t, h.CanRedo())
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Index())

	got, ok := h.Undo(snap(31))
	require.True(t, ok)
	assert.Equal(t, 30, rowHeight(got))
}

func TestHistory_PushAfterRedoKeepsNoDuplicate(t *testing.T) {
	h := NewHistory(5)
	h.Push(snap(20))
	_, ok := h.Undo(snap(21))
	require.True(t, ok)
	_, ok = h.Redo()
	require.True(t, ok)

	h.Push(snap(21))
	assert.Equal(t, 2, h.Len())

	got, ok := h.Undo(snap(22))
	require.True(t, ok)
	assert.Equal(t, 21, rowHeight(got))
	got, ok = h.Undo(snap(0))
	require.True(t, ok)
	assert.Equal(t, 20, rowHeight(got))
}

func TestHistory_TouchAfterUndoDropsRedo(t *testing.T) {
	h := NewHistory(5)
	h.Push(snap(20))
	_, ok := h.Undo(snap(21))
	require.True(t, ok)
	require.True(t, h.CanRedo())

	h.Touch()

	assert.False(t, h.CanRedo())
	got, ok := h.Undo(snap(25))
	require.True(t, ok)
	assert.Equal(t, 20, rowHeight(got))
	got, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, 25, rowHeight(got))
}

func TestHistory_BoundDropsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Push(snap(20 + i))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Index())

	var last Snapshot
	for h.CanUndo() {
		s, ok := h.Undo(snap(25))
		require.True(t, ok)
		last = s
	}
	assert.Equal(t, 23, rowHeight(last))
}

func TestHistory_SnapshotsAreIsolated(t *testing.T) {
	h := NewHistory(5)
	s := snap(20)
	s.Layouts[layout.Desktop] = layout.List{{BlockID: "a", W: 1, H: 1}}
	h.Push(s)

	s.Layouts[layout.Desktop][0].X = 9

	got, ok := h.Undo(snap(21))
	require.True(t, ok)
	assert.Equal(t, 0, got.Layouts[layout.Desktop][0].X)

	got.Layouts[layout.Desktop][0].X = 5
	again, ok := h.Redo()
	require.True(t, ok)
	assert.Equal(t, 21, rowHeight(again))
}

func TestHistory_Rename(t *testing.T) {
	h := NewHistory(5)
	s := snap(20)
	s.Layouts[layout.Mobile] = layout.List{{BlockID: "draft-1", W: 1, H: 1}}
	h.Push(s)

	h.Rename("draft-1", "b-1")

	got, ok := h.Undo(snap(21))
	require.True(t, ok)
	assert.Equal(t, "b-1", got.Layouts[layout.Mobile][0].BlockID)
}
