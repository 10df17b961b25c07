package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"phFolio/internal/block"
	"phFolio/internal/page"
)

// fakePersister 模拟服务端：CreateBlock 分配递增 ID，Save 整体保存文档。
type fakePersister struct {
	mu        sync.Mutex
	doc       page.Document
	saves     []page.Document
	created   []block.Block
	nextID    int
	loadErr   error
	createErr error
	saveErr   error

	// gate 非空时 Save 会阻塞直到 gate 可读，entered 用于通知测试 Save 已开始。
	gate    chan struct{}
	entered chan struct{}
}

func newFakePersister() *fakePersister {
	return &fakePersister{doc: page.Empty()}
}

func (f *fakePersister) Load(context.Context) (page.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return page.Document{}, f.loadErr
	}
	return f.doc.Clone(), nil
}

func (f *fakePersister) CreateBlock(_ context.Context, b block.Block) (block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return block.Block{}, f.createErr
	}
	f.nextID++
	b.ID = fmt.Sprintf("srv-%d", f.nextID)
	f.created = append(f.created, b.Clone())
	return b, nil
}

func (f *fakePersister) Save(ctx context.Context, doc page.Document) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, doc.Clone())
	f.doc = doc.Clone()
	return nil
}

func (f *fakePersister) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakePersister) lastSave() page.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(p Persister, opts ...Option) *Session {
	return New(p, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func textPayload(en string) block.TextPayload {
	return block.TextPayload{Variant: "paragraph", Text: block.LocalizedText{EN: en}}
}

type recordingSurface struct {
	frames []Frame
}

func (r *recordingSurface) Render(f Frame) { r.frames = append(r.frames, f) }
