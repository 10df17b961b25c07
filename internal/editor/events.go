package editor

import (
	"slices"

	"phFolio/internal/layout"
)

// EventKind 标识通知的类型。
type EventKind string

const (
	EventChanged    EventKind = "changed"
	EventSelection  EventKind = "selection"
	EventMode       EventKind = "mode"
	EventDevice     EventKind = "device"
	EventLoaded     EventKind = "loaded"
	EventSaved      EventKind = "saved"
	EventSaveFailed EventKind = "save_failed"
)

// Event 是 Session 状态变化后发出的通知。
type Event struct {
	Kind EventKind
	Err  error
}

// Subscribe 注册监听器，返回取消订阅函数。
// 监听器在状态锁释放之后同步调用，可以安全地回调 Session。
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Frame 是推送给渲染适配器的一帧：当前设备的规范化矩形、网格配置与交互开关。
type Frame struct {
	Device     layout.Device
	Grid       layout.GridProfile
	Placements layout.List
	Editable   bool
	Selected   string
}

// Surface 是外部网格可视化/拖拽组件的出站接口。
type Surface interface {
	Render(Frame)
}

// Frame 返回当前设备的渲染帧。
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Session) frameLocked() Frame {
	return Frame{
		Device:     s.device,
		Grid:       s.grids.Get(s.device),
		Placements: s.placementsLocked(s.device).Normalize(s.grids.Get(s.device)),
		Editable:   s.mode == ModeEdit,
		Selected:   s.selected,
	}
}

// AttachSurface 立即推送一帧，并在此后每次状态变化时重新推送。
func (s *Session) AttachSurface(surface Surface) (detach func()) {
	surface.Render(s.Frame())
	return s.Subscribe(func(ev Event) {
		if ev.Kind == EventSaveFailed || ev.Kind == EventSaved {
			return
		}
		surface.Render(s.Frame())
	})
}
