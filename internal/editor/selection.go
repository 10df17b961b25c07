package editor

import (
	"fmt"
	"log/slog"

	"phFolio/internal/layout"
)

// Mode 是编辑器的交互模式。
type Mode string

const (
	ModeEdit    Mode = "edit"
	ModePreview Mode = "preview"
)

// Mode 返回当前模式。
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode 切换编辑/预览模式。进入预览会终止进行中的拖拽手势。
func (s *Session) SetMode(m Mode) error {
	if m != ModeEdit && m != ModePreview {
		return fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}

	s.mu.Lock()
	if s.mode == m {
		s.mu.Unlock()
		return nil
	}
	s.mode = m
	if m == ModePreview {
		s.gesture = false
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventMode})
	return nil
}

// Device 返回当前激活的设备。
func (s *Session) Device() layout.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// SetDevice 切换设备；选中块在新设备上没有放置项时清空选中。
func (s *Session) SetDevice(d layout.Device) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownDevice, d)
	}

	s.mu.Lock()
	if s.device == d {
		s.mu.Unlock()
		return nil
	}
	s.device = d
	events := []Event{{Kind: EventDevice}}
	if s.selected != "" && !s.placementsLocked(d).Contains(s.selected) {
		s.selected = ""
		events = append(events, Event{Kind: EventSelection})
	}
	s.mu.Unlock()

	s.emit(events...)
	return nil
}

// Selected 返回当前选中的块 ID。
func (s *Session) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected != ""
}

// Select 选中指定块；块不存在时记录日志并忽略。
func (s *Session) Select(id string) {
	s.mu.Lock()
	if !s.hasBlockLocked(id) {
		s.mu.Unlock()
		s.logger.Debug("select unknown block ignored", slog.String("block_id", id))
		return
	}
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.mu.Unlock()

	s.emit(Event{Kind: EventSelection})
}

// ClearSelection 在点击空白区域时调用。
func (s *Session) ClearSelection() {
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return
	}
	s.selected = ""
	s.mu.Unlock()

	s.emit(Event{Kind: EventSelection})
}

// reconcileSelectionLocked 在状态替换后修正选中项，返回是否发生变化。
func (s *Session) reconcileSelectionLocked() bool {
	if s.selected == "" {
		return false
	}
	if s.hasBlockLocked(s.selected) && s.placementsLocked(s.device).Contains(s.selected) {
		return false
	}
	s.selected = ""
	return true
}
