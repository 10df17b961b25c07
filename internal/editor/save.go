package editor

import (
	"context"
	"fmt"
	"log/slog"

	"phFolio/internal/block"
)

// Save 把当前状态提交到持久化端口，一次调用只尝试一次。
//
// 仍使用占位 ID 的草稿块会先逐个通过 CreateBlock 创建，返回的服务端 ID
// 会替换块列表、放置列表、选中项与历史快照中的占位 ID，每替换一个块发出
// EventChanged（选中项改名时另发 EventSelection）；随后提交完整文档。
// 失败时不回滚内存状态，未保存标记保持为 true。保存期间再次调用返回
// ErrSaveInProgress；保存期间发生的编辑会使会话在保存完成后仍为未保存状态。
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.persister == nil {
		s.mu.Unlock()
		return ErrNoPersister
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	drafts := make([]block.Block, 0)
	for _, b := range s.blocks {
		if block.IsDraft(b.ID) {
			drafts = append(drafts, b.Clone())
		}
	}
	s.mu.Unlock()

	for _, draft := range drafts {
		created, err := s.persister.CreateBlock(ctx, draft)
		if err != nil {
			return s.finishSave(0, fmt.Errorf("create block %s: %w", draft.ID, err))
		}
		if created.ID == "" || block.IsDraft(created.ID) {
			return s.finishSave(0, fmt.Errorf("create block %s: server returned no id", draft.ID))
		}
		s.mu.Lock()
		events := []Event{{Kind: EventChanged}}
		if s.resolveDraftLocked(draft.ID, created) {
			events = append(events, Event{Kind: EventSelection})
		}
		s.mu.Unlock()
		s.emit(events...)
	}

	s.mu.Lock()
	doc := s.documentLocked(false)
	revision := s.revision
	s.mu.Unlock()

	if err := s.persister.Save(ctx, doc); err != nil {
		return s.finishSave(0, fmt.Errorf("save page: %w", err))
	}
	return s.finishSave(revision, nil)
}

func (s *Session) finishSave(revision uint64, err error) error {
	s.mu.Lock()
	s.saving = false
	if err == nil && s.revision == revision {
		s.dirty = false
	}
	dirty := s.dirty
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("save failed", slog.Any("error", err))
		s.emit(Event{Kind: EventSaveFailed, Err: err})
		return err
	}
	s.logger.Info("page saved", slog.Bool("dirty", dirty))
	s.emit(Event{Kind: EventSaved})
	return nil
}

// resolveDraftLocked 将占位 ID 替换为服务端 ID。块已被删除时只更新历史快照。
// 返回选中项是否随之改名。
func (s *Session) resolveDraftLocked(draftID string, created block.Block) bool {
	if i := s.blockIndexLocked(draftID); i >= 0 {
		s.blocks[i].ID = created.ID
		s.blocks[i].CreatedAt = created.CreatedAt
		s.blocks[i].UpdatedAt = created.UpdatedAt
	}
	for _, l := range s.layouts {
		l.Rename(draftID, created.ID)
	}
	renamed := s.selected == draftID
	if renamed {
		s.selected = created.ID
	}
	s.history.Rename(draftID, created.ID)
	return renamed
}
