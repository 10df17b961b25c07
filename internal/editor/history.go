package editor

import (
	"phFolio/internal/block"
	"phFolio/internal/layout"
)

// DefaultHistoryLimit 是历史栈的默认容量。
const DefaultHistoryLimit = 20

// Snapshot 是可编辑状态（块、两套放置列表、网格配置）的深拷贝。
type Snapshot struct {
	Blocks  []block.Block
	Layouts layout.Layouts
	Grids   layout.Profiles
}

func (s Snapshot) clone() Snapshot {
	blocks := make([]block.Block, len(s.Blocks))
	for i, b := range s.Blocks {
		blocks[i] = b.Clone()
	}
	return Snapshot{
		Blocks:  blocks,
		Layouts: s.Layouts.Clone(),
		Grids:   s.Grids.Clone(),
	}
}

func (s *Snapshot) rename(from, to string) {
	for i := range s.Blocks {
		if s.Blocks[i].ID == from {
			s.Blocks[i].ID = to
		}
	}
	for _, l := range s.Layouts {
		l.Rename(from, to)
	}
}

// History 是线性的有界快照栈。
//
// 检查点保存的是变更之前的状态。ahead 表示实时状态已经越过 entries[index]
// 且尚未被记录；此时撤销会先把实时状态追加进栈，以便重做能够回到它。
// synced 表示实时状态与 entries[index] 相同（刚刚撤销或重做过）。
type History struct {
	entries []Snapshot
	index   int
	limit   int
	ahead   bool
	synced  bool
}

// NewHistory 创建容量为 limit 的历史栈，limit < 2 时使用默认值。
func NewHistory(limit int) *History {
	if limit < 2 {
		limit = DefaultHistoryLimit
	}
	return &History{
		entries: make([]Snapshot, 0, limit),
		index:   -1,
		limit:   limit,
	}
}

// Push 记录检查点：丢弃 index 之后的重做分支，追加快照，超出容量时从头部淘汰。
// 实时状态与 entries[index] 相同时只覆盖该项，避免出现重复快照。
func (h *History) Push(s Snapshot) {
	if h.synced && h.index >= 0 {
		h.entries = h.entries[:h.index+1]
		h.entries[h.index] = s.clone()
	} else {
		h.append(s)
	}
	h.ahead = true
	h.synced = false
}

// Touch 记录一次未建检查点的实时变更（例如拖拽中的放置更新）。
// 若此前处于撤销后的位置，重做分支随之失效。
func (h *History) Touch() {
	if h.index < 0 || h.ahead {
		return
	}
	h.entries = h.entries[:h.index+1]
	h.ahead = true
	h.synced = false
}

func (h *History) append(s Snapshot) {
	if h.index < len(h.entries)-1 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, s.clone())
	h.index = len(h.entries) - 1

	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
		h.index -= over
	}
}

// Undo 返回需要恢复的快照。live 是当前实时状态。
func (h *History) Undo(live Snapshot) (Snapshot, bool) {
	if !h.CanUndo() {
		return Snapshot{}, false
	}
	if h.ahead {
		h.append(live)
		h.ahead = false
		h.synced = true
		if h.index <= 0 {
			return Snapshot{}, false
		}
	}
	h.index--
	h.synced = true
	return h.entries[h.index].clone(), true
}

// Redo 返回重做后的快照。
func (h *History) Redo() (Snapshot, bool) {
	if !h.CanRedo() {
		return Snapshot{}, false
	}
	h.index++
	h.synced = true
	return h.entries[h.index].clone(), true
}

func (h *History) CanUndo() bool {
	if h.index < 0 {
		return false
	}
	return h.ahead || h.index > 0
}

func (h *History) CanRedo() bool {
	return !h.ahead && h.index < len(h.entries)-1
}

// Len 返回栈中快照数量。
func (h *History) Len() int { return len(h.entries) }

// Index 返回当前位置，-1 表示还没有检查点。
func (h *History) Index() int { return h.index }

func (h *History) Reset() {
	h.entries = h.entries[:0]
	h.index = -1
	h.ahead = false
	h.synced = false
}

// Rename 在所有快照中把占位 ID 替换为服务端 ID。
func (h *History) Rename(from, to string) {
	for i := range h.entries {
		h.entries[i].rename(from, to)
	}
}
