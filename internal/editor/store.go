package editor

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"phFolio/internal/block"
	"phFolio/internal/layout"
)

// 新块在两个设备上的默认尺寸（网格单元）。
const (
	seedWidth  = 4
	seedHeight = 4
)

// mutate 在编辑模式下持锁执行 fn，释放锁后派发 fn 返回的事件。
func (s *Session) mutate(fn func() ([]Event, error)) error {
	s.mu.Lock()
	if s.mode != ModeEdit {
		s.mu.Unlock()
		return ErrReadOnly
	}
	events, err := fn()
	s.mu.Unlock()

	s.emit(events...)
	return err
}

func (s *Session) checkpointLocked() {
	s.history.Push(s.snapshotLocked())
	s.markDirtyLocked()
}

// SaveCheckpoint 显式记录检查点，供交互层在连续操作开始前调用。
func (s *Session) SaveCheckpoint() error {
	return s.mutate(func() ([]Event, error) {
		s.checkpointLocked()
		return []Event{{Kind: EventChanged}}, nil
	})
}

// NewBlock 以当前设备为 affinity 创建草稿块并加入页面，返回占位 ID。
func (s *Session) NewBlock(payload block.Payload) (string, error) {
	b, err := block.New(payload, s.Device())
	if err != nil {
		return "", err
	}
	return s.AddBlock(b)
}

// AddBlock 追加一个完整的块，并在两个设备的底部各放置一份，随后选中它。
// 空 ID 会被替换为占位 ID。
func (s *Session) AddBlock(b block.Block) (string, error) {
	if b.ID == "" {
		b.ID = block.DraftPrefix + uuid.NewString()
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	if !b.DeviceAffinity.Valid() {
		b.DeviceAffinity = layout.Desktop
	}

	err := s.mutate(func() ([]Event, error) {
		if s.hasBlockLocked(b.ID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBlock, b.ID)
		}
		s.checkpointLocked()

		s.blocks = append(s.blocks, b.Clone())
		for _, d := range layout.Devices() {
			s.layouts[d] = append(s.placementsLocked(d), s.seedPlacementLocked(d, b.ID))
		}
		s.selected = b.ID
		return []Event{{Kind: EventChanged}, {Kind: EventSelection}}, nil
	})
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (s *Session) seedPlacementLocked(d layout.Device, id string) layout.Placement {
	columns := s.grids.Get(d).Columns
	return layout.Placement{
		BlockID: id,
		X:       0,
		Y:       s.placementsLocked(d).BottomRow(),
		W:       min(seedWidth, columns),
		H:       seedHeight,
	}
}

// UpdateBlock 替换块的 payload，payload 类型必须与块的 kind 一致。
// 块不存在时记录日志并忽略。
func (s *Session) UpdateBlock(id string, payload block.Payload) error {
	return s.mutate(func() ([]Event, error) {
		i := s.blockIndexLocked(id)
		if i < 0 {
			s.logger.Warn("update unknown block ignored", slog.String("block_id", id))
			return nil, nil
		}
		updated, err := s.blocks[i].WithPayload(payload)
		if err != nil {
			return nil, err
		}
		s.checkpointLocked()
		s.blocks[i] = updated
		return []Event{{Kind: EventChanged}}, nil
	})
}

// RemoveBlock 删除块并从两个设备的放置列表中移除它。
func (s *Session) RemoveBlock(id string) error {
	return s.mutate(func() ([]Event, error) {
		i := s.blockIndexLocked(id)
		if i < 0 {
			s.logger.Debug("remove unknown block ignored", slog.String("block_id", id))
			return nil, nil
		}
		s.checkpointLocked()

		s.blocks = append(s.blocks[:i:i], s.blocks[i+1:]...)
		for _, d := range layout.Devices() {
			s.layouts[d] = s.layouts[d].Without(id)
		}
		events := []Event{{Kind: EventChanged}}
		if s.selected == id {
			s.selected = ""
			events = append(events, Event{Kind: EventSelection})
		}
		return events, nil
	})
}

// UpdatePlacements 整体替换一个设备的放置列表。不记录检查点：
// 拖拽过程中的高频更新由交互层在手势开始时记录一次。
func (s *Session) UpdatePlacements(d layout.Device, items layout.List) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownDevice, d)
	}
	return s.mutate(func() ([]Event, error) {
		next := items.Prune(s.hasBlockLocked).Normalize(s.grids.Get(d))
		s.layouts[d] = next
		s.history.Touch()
		s.markDirtyLocked()

		events := []Event{{Kind: EventChanged}}
		if d == s.device && s.reconcileSelectionLocked() {
			events = append(events, Event{Kind: EventSelection})
		}
		return events, nil
	})
}

// UpdateGridSettings 更新设备的列数和/或行高，超出范围的值会被裁剪。
// 列数变化后该设备的放置列表会重新规范化。
func (s *Session) UpdateGridSettings(d layout.Device, update layout.GridUpdate) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownDevice, d)
	}
	return s.mutate(func() ([]Event, error) {
		current := s.grids.Get(d)
		next := current.Apply(update)
		if next == current {
			return nil, nil
		}
		s.checkpointLocked()

		s.grids[d] = next
		s.layouts[d] = s.placementsLocked(d).Normalize(next)
		return []Event{{Kind: EventChanged}}, nil
	})
}

// ResetAll 清空全部块与两个设备的放置列表，可通过撤销恢复。
func (s *Session) ResetAll() error {
	return s.mutate(func() ([]Event, error) {
		s.checkpointLocked()

		s.blocks = []block.Block{}
		s.layouts = layout.NewLayouts()
		events := []Event{{Kind: EventChanged}}
		if s.selected != "" {
			s.selected = ""
			events = append(events, Event{Kind: EventSelection})
		}
		return events, nil
	})
}

// RemovePlacement 只把块从一个设备的布局中移除，块本身保留。
func (s *Session) RemovePlacement(d layout.Device, id string) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownDevice, d)
	}
	return s.mutate(func() ([]Event, error) {
		if !s.placementsLocked(d).Contains(id) {
			s.logger.Debug("remove unknown placement ignored",
				slog.String("device", string(d)),
				slog.String("block_id", id),
			)
			return nil, nil
		}
		s.checkpointLocked()

		s.layouts[d] = s.layouts[d].Without(id)
		events := []Event{{Kind: EventChanged}}
		if d == s.device && s.selected == id {
			s.selected = ""
			events = append(events, Event{Kind: EventSelection})
		}
		return events, nil
	})
}

// AddPlacement 把已有块放回某个设备的布局底部。
func (s *Session) AddPlacement(d layout.Device, id string) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownDevice, d)
	}
	return s.mutate(func() ([]Event, error) {
		if !s.hasBlockLocked(id) {
			s.logger.Warn("place unknown block ignored", slog.String("block_id", id))
			return nil, nil
		}
		if s.placementsLocked(d).Contains(id) {
			return nil, nil
		}
		s.checkpointLocked()

		s.layouts[d] = append(s.placementsLocked(d), s.seedPlacementLocked(d, id))
		return []Event{{Kind: EventChanged}}, nil
	})
}

// Undo 恢复到上一个检查点，返回状态是否发生变化。撤销本身不记录检查点。
func (s *Session) Undo() bool {
	return s.travel(func() (Snapshot, bool) {
		return s.history.Undo(s.snapshotLocked())
	})
}

// Redo 前进到下一个检查点。
func (s *Session) Redo() bool {
	return s.travel(s.history.Redo)
}

func (s *Session) travel(step func() (Snapshot, bool)) bool {
	changed := false
	_ = s.mutate(func() ([]Event, error) {
		snap, ok := step()
		if !ok {
			return nil, nil
		}
		changed = true
		s.restoreLocked(snap)
		s.gesture = false
		s.markDirtyLocked()

		events := []Event{{Kind: EventChanged}}
		if s.reconcileSelectionLocked() {
			events = append(events, Event{Kind: EventSelection})
		}
		return events, nil
	})
	return changed
}

// BeginGesture 在拖拽/缩放开始时调用，整个手势只记录一个检查点。
func (s *Session) BeginGesture() error {
	return s.mutate(func() ([]Event, error) {
		if s.gesture {
			return nil, nil
		}
		s.gesture = true
		s.checkpointLocked()
		return []Event{{Kind: EventChanged}}, nil
	})
}

// ApplyGesture 应用手势过程中的中间布局。
func (s *Session) ApplyGesture(d layout.Device, items layout.List) error {
	return s.UpdatePlacements(d, items)
}

// EndGesture 应用手势的最终布局并结束手势。
// 布局被拒绝时手势同样结束，下一次 BeginGesture 会记录新的检查点。
func (s *Session) EndGesture(d layout.Device, items layout.List) error {
	defer func() {
		s.mu.Lock()
		s.gesture = false
		s.mu.Unlock()
	}()
	return s.UpdatePlacements(d, items)
}

// InGesture 报告是否有手势正在进行。
func (s *Session) InGesture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gesture
}
