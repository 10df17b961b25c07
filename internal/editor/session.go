// Package editor 实现页面构建器的网格布局编辑引擎：块与放置列表存储、
// 检查点式撤销/重做、未保存状态跟踪以及基于差异的保存协调。
//
// Session 由单个编辑会话独占，每个会话单独构造；所有读写方法都可以
// 被并发调用，但引擎本身只定义单写者语义。
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"phFolio/internal/block"
	"phFolio/internal/layout"
	"phFolio/internal/page"
)

var (
	ErrReadOnly       = errors.New("editor is in preview mode")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrDuplicateBlock = errors.New("block id already exists")
	ErrNoPersister    = errors.New("editor has no persister")
	ErrUnknownMode    = errors.New("unknown editor mode")
)

// Persister 是引擎依赖的持久化端口。
type Persister interface {
	// Load 返回当前账号已持久化的页面。
	Load(ctx context.Context) (page.Document, error)
	// CreateBlock 创建单个块并返回带服务端 ID 的记录。
	CreateBlock(ctx context.Context, b block.Block) (block.Block, error)
	// Save 提交完整页面，由服务端做删除缺失/更新插入/整体替换放置列表的对账。
	Save(ctx context.Context, doc page.Document) error
}

// Option 配置 Session。
type Option func(*Session)

// WithHistoryLimit 设置历史栈容量。
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.history = NewHistory(n) }
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocument 以给定文档作为初始（已持久化）状态。
func WithDocument(doc page.Document) Option {
	return func(s *Session) { s.applyDocumentLocked(doc) }
}

// Session 持有一个编辑会话的全部状态。
type Session struct {
	mu        sync.Mutex
	persister Persister
	logger    *slog.Logger

	blocks  []block.Block
	layouts layout.Layouts
	grids   layout.Profiles
	history *History

	mode     Mode
	device   layout.Device
	selected string
	gesture  bool

	dirty    bool
	revision uint64
	saving   bool

	listeners    map[int]func(Event)
	nextListener int
}

// New 创建一个空的编辑会话，初始处于编辑模式、桌面设备、无未保存变更。
func New(persister Persister, opts ...Option) *Session {
	s := &Session{
		persister: persister,
		logger:    slog.Default(),
		blocks:    []block.Block{},
		layouts:   layout.NewLayouts(),
		grids:     layout.DefaultProfiles(),
		history:   NewHistory(DefaultHistoryLimit),
		mode:      ModeEdit,
		device:    layout.Desktop,
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 从持久化端口重新加载页面，并重置历史、选中状态与未保存标记。
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.persister == nil {
		s.mu.Unlock()
		return ErrNoPersister
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.mu.Unlock()

	doc, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.applyDocumentLocked(doc)
	s.mu.Unlock()

	s.emit(Event{Kind: EventLoaded})
	return nil
}

func (s *Session) applyDocumentLocked(doc page.Document) {
	blocks := make([]block.Block, 0, len(doc.Blocks))
	seen := make(map[string]struct{}, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if _, dup := seen[b.ID]; dup || b.ID == "" {
			s.logger.Warn("drop block with missing or duplicate id", slog.String("block_id", b.ID))
			continue
		}
		if err := b.Validate(); err != nil {
			s.logger.Warn("drop invalid block", slog.String("block_id", b.ID), slog.Any("error", err))
			continue
		}
		seen[b.ID] = struct{}{}
		blocks = append(blocks, b.Clone())
	}
	s.blocks = blocks

	s.grids = layout.DefaultProfiles()
	for d, profile := range doc.GridSettings {
		if d.Valid() {
			s.grids[d] = profile.Clamp()
		}
	}

	s.layouts = layout.NewLayouts()
	for d, items := range doc.Layouts {
		if !d.Valid() {
			continue
		}
		s.layouts[d] = items.Prune(s.hasBlockLocked).Normalize(s.grids.Get(d))
	}

	s.history.Reset()
	s.selected = ""
	s.gesture = false
	s.dirty = false
	s.revision++
}

// IsDirty 报告是否存在未保存的变更。
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Saving 报告是否有保存请求正在进行。
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Blocks 返回全部块的深拷贝。
func (s *Session) Blocks() []block.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]block.Block, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Block 按 ID 查找块。
func (s *Session) Block(id string) (block.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.blockIndexLocked(id); i >= 0 {
		return s.blocks[i].Clone(), true
	}
	return block.Block{}, false
}

// Placements 返回设备的放置列表，引用已不存在块的项会被丢弃。
func (s *Session) Placements(d layout.Device) layout.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placementsLocked(d)
}

// GridProfile 返回设备的网格配置。
func (s *Session) GridProfile(d layout.Device) layout.GridProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grids.Get(d)
}

// Snapshot 返回当前可编辑状态的深拷贝。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Document 返回当前状态对应的保存文档（包括尚未创建的草稿块）。
func (s *Session) Document() page.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked(true)
}

func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

func (s *Session) snapshotLocked() Snapshot {
	layouts := make(layout.Layouts, len(s.layouts))
	for _, d := range layout.Devices() {
		layouts[d] = s.placementsLocked(d)
	}
	return Snapshot{
		Blocks:  s.blocks,
		Layouts: layouts,
		Grids:   s.grids,
	}.clone()
}

func (s *Session) restoreLocked(snap Snapshot) {
	s.blocks = snap.Blocks
	s.layouts = snap.Layouts
	s.grids = snap.Grids
	if s.blocks == nil {
		s.blocks = []block.Block{}
	}
	if s.layouts == nil {
		s.layouts = layout.NewLayouts()
	}
	if s.grids == nil {
		s.grids = layout.DefaultProfiles()
	}
}

// documentLocked 组装保存文档；includeDrafts 为 false 时排除草稿块及其放置项。
func (s *Session) documentLocked(includeDrafts bool) page.Document {
	keep := func(id string) bool {
		return s.hasBlockLocked(id) && (includeDrafts || !block.IsDraft(id))
	}

	blocks := make([]block.Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		if keep(b.ID) {
			blocks = append(blocks, b.Clone())
		}
	}
	layouts := make(layout.Layouts, 2)
	for _, d := range layout.Devices() {
		layouts[d] = s.layouts[d].Prune(keep).Normalize(s.grids.Get(d))
	}
	return page.Document{
		Blocks:       blocks,
		Layouts:      layouts,
		GridSettings: s.grids.Clone(),
	}
}

func (s *Session) placementsLocked(d layout.Device) layout.List {
	return s.layouts[d].Prune(s.hasBlockLocked)
}

func (s *Session) blockIndexLocked(id string) int {
	for i, b := range s.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) hasBlockLocked(id string) bool {
	return s.blockIndexLocked(id) >= 0
}

func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.revision++
}
