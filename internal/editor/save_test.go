package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/block"
	"phFolio/internal/layout"
	"phFolio/internal/page"
)

func persistedPersister() *fakePersister {
	p := newFakePersister()
	p.doc = page.Empty()
	p.doc.Blocks = []block.Block{
		{ID: "b1", Kind: block.KindText, Payload: textPayload("persisted"), DeviceAffinity: layout.Desktop},
	}
	p.doc.Layouts[layout.Desktop] = layout.List{{BlockID: "b1", W: 4, H: 2}}
	p.doc.Layouts[layout.Mobile] = layout.List{{BlockID: "b1", W: 4, H: 2}}
	return p
}

func TestSave_ResolvesDraftIDsEverywhere(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(p)
	draftID, err := s.NewBlock(textPayload("fresh"))
	require.NoError(t, err)
	require.True(t, block.IsDraft(draftID))

	require.NoError(t, s.Save(context.Background()))

	require.Len(t, p.created, 1)
	require.Len(t, s.Blocks(), 1)
	assert.Equal(t, "srv-1", s.Blocks()[0].ID)
	assert.Equal(t, "srv-1", s.Placements(layout.Desktop)[0].BlockID)
	assert.Equal(t, "srv-1", s.Placements(layout.Mobile)[0].BlockID)
	selected, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "srv-1", selected)
	assert.False(t, s.IsDirty())

	saved := p.lastSave()
	require.NoError(t, saved.Validate())
	require.Len(t, saved.Blocks, 1)
	assert.Equal(t, "srv-1", saved.Blocks[0].ID)

	// 历史快照中的占位 ID 也已被替换
	require.True(t, s.Undo())
	assert.Empty(t, s.Blocks())
	require.True(t, s.Redo())
	_, ok = s.Block("srv-1")
	assert.True(t, ok)
	_, ok = s.Block(draftID)
	assert.False(t, ok)
}

func TestSave_SurfaceSeesResolvedIDs(t *testing.T) {
	p := newFakePersister()
	s := newTestSession(p)
	surface := &recordingSurface{}
	s.AttachSurface(surface)
	var kinds []EventKind
	s.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	_, err := s.NewBlock(textPayload("fresh"))
	require.NoError(t, err)
	kinds = nil
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, []EventKind{EventChanged, EventSelection, EventSaved}, kinds)

	last := surface.frames[len(surface.frames)-1]
	require.Len(t, last.Placements, 1)
	assert.Equal(t, "srv-1", last.Placements[0].BlockID)
	assert.Equal(t, "srv-1", last.Selected)

	// 适配器用最后一帧回报拖拽结果，放置项不应丢失
	require.NoError(t, s.BeginGesture())
	require.NoError(t, s.EndGesture(layout.Desktop, last.Placements))
	placements := s.Placements(layout.Desktop)
	require.Len(t, placements, 1)
	assert.Equal(t, "srv-1", placements[0].BlockID)
}

func TestSave_FailureKeepsStateDirty(t *testing.T) {
	boom := errors.New("boom")
	p := persistedPersister()
	s := newTestSession(p)
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.UpdateBlock("b1", textPayload("edited")))

	p.saveErr = boom
	err := s.Save(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, s.IsDirty())
	assert.False(t, s.Saving())
	b, _ := s.Block("b1")
	assert.Equal(t, "edited", b.Payload.(block.TextPayload).Text.EN)

	p.saveErr = nil
	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.IsDirty())
	assert.Equal(t, 1, p.saveCount())
}

func TestSave_CreateFailureLeavesDraft(t *testing.T) {
	boom := errors.New("create failed")
	p := newFakePersister()
	p.createErr = boom
	s := newTestSession(p)
	draftID, err := s.NewBlock(textPayload("fresh"))
	require.NoError(t, err)

	err = s.Save(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, s.IsDirty())
	assert.Zero(t, p.saveCount())
	_, ok := s.Block(draftID)
	assert.True(t, ok)

	p.createErr = nil
	require.NoError(t, s.Save(context.Background()))
	require.Len(t, p.created, 1)
	assert.Equal(t, "srv-1", s.Blocks()[0].ID)
}

func TestSave_RejectsDraftIDFromServer(t *testing.T) {
	s := newTestSession(draftEchoPersister{newFakePersister()})
	_, err := s.NewBlock(textPayload("fresh"))
	require.NoError(t, err)

	require.Error(t, s.Save(context.Background()))
	assert.True(t, s.IsDirty())
}

// draftEchoPersister 原样返回草稿块，模拟没有分配 ID 的服务端。
type draftEchoPersister struct{ *fakePersister }

func (d draftEchoPersister) CreateBlock(_ context.Context, b block.Block) (block.Block, error) {
	return b, nil
}

func TestSave_ConcurrentSaveRejected(t *testing.T) {
	p := persistedPersister()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	s := newTestSession(p)
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.UpdateBlock("b1", textPayload("first")))

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()

	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("save did not start")
	}
	assert.True(t, s.Saving())
	require.ErrorIs(t, s.Save(context.Background()), ErrSaveInProgress)
	require.ErrorIs(t, s.Load(context.Background()), ErrSaveInProgress)

	// 保存期间的编辑不会被本次保存清除
	require.NoError(t, s.UpdateBlock("b1", textPayload("second")))

	close(p.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("save did not finish")
	}
	assert.True(t, s.IsDirty())
	assert.Equal(t, "first", p.lastSave().Blocks[0].Payload.(block.TextPayload).Text.EN)

	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.IsDirty())
	assert.Equal(t, "second", p.lastSave().Blocks[0].Payload.(block.TextPayload).Text.EN)
}

func TestSave_RepeatedSaveSendsSameDocument(t *testing.T) {
	p := persistedPersister()
	s := newTestSession(p)
	require.NoError(t, s.Load(context.Background()))
	_, err := s.NewBlock(textPayload("extra"))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background()))
	first := p.lastSave()
	require.NoError(t, s.Save(context.Background()))
	second := p.lastSave()

	assert.Equal(t, first, second)
	assert.Len(t, p.created, 1, "a resolved block is not created twice")
}

func TestSave_OmitsRemovedBlocks(t *testing.T) {
	p := persistedPersister()
	s := newTestSession(p)
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.RemoveBlock("b1"))

	require.NoError(t, s.Save(context.Background()))

	saved := p.lastSave()
	assert.Empty(t, saved.Blocks)
	assert.Empty(t, saved.Layouts[layout.Desktop])
	assert.Empty(t, saved.Layouts[layout.Mobile])
}

func TestSave_NoPersister(t *testing.T) {
	s := newTestSession(nil)
	assert.ErrorIs(t, s.Save(context.Background()), ErrNoPersister)
	assert.ErrorIs(t, s.Load(context.Background()), ErrNoPersister)
}

func TestSave_EmitsOutcomeEvents(t *testing.T) {
	boom := errors.New("boom")
	p := persistedPersister()
	s := newTestSession(p)
	require.NoError(t, s.Load(context.Background()))

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	p.saveErr = boom
	require.Error(t, s.Save(context.Background()))
	p.saveErr = nil
	require.NoError(t, s.Save(context.Background()))

	require.Len(t, events, 2)
	assert.Equal(t, EventSaveFailed, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, boom)
	assert.Equal(t, EventSaved, events[1].Kind)
	assert.NoError(t, events[1].Err)
}
