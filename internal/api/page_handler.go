package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"phFolio/internal/api/middleware"
	"phFolio/internal/block"
	"phFolio/internal/database"
	"phFolio/internal/errcode"
	"phFolio/internal/layout"
	"phFolio/internal/metrics"
	"phFolio/internal/notify"
	"phFolio/internal/page"
	"phFolio/internal/pagestore"
	"phFolio/internal/storage"
	"phFolio/internal/tasks"
)

// PageStore 是页面处理器依赖的持久化操作，由 pagestore.Store 实现。
type PageStore interface {
	Load(ctx context.Context, accountID uint) (page.Document, error)
	CreateBlock(ctx context.Context, accountID uint, b block.Block) (block.Block, error)
	Reconcile(ctx context.Context, accountID uint, doc page.Document) (pagestore.Result, error)
	Account(ctx context.Context, accountID uint) (database.Account, error)
}

// TaskEnqueuer 是 asynq.Client 中投递任务所需的部分。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SnapshotLinker 为已发布的页面快照生成下载链接。
type SnapshotLinker interface {
	Exists(ctx context.Context, objectKey string) (bool, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// PageHandler 处理编辑器的加载、保存与建块请求。
type PageHandler struct {
	store        PageStore
	queue        TaskEnqueuer
	redis        RedisStore
	snapshots    SnapshotLinker
	logger       *slog.Logger
	linkTTL      time.Duration
	historyLimit int
}

// NewPageHandler 构造页面处理器。
func NewPageHandler(store PageStore, queue TaskEnqueuer, redisClient RedisStore, snapshots SnapshotLinker, logger *slog.Logger, linkTTL time.Duration, historyLimit int) *PageHandler {
	return &PageHandler{
		store:        store,
		queue:        queue,
		redis:        redisClient,
		snapshots:    snapshots,
		logger:       logger,
		linkTTL:      linkTTL,
		historyLimit: historyLimit,
	}
}

// GetPage 返回当前账号的完整页面文档。
func (h *PageHandler) GetPage(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	doc, err := h.store.Load(c.Request.Context(), accountID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, doc)
}

type saveResponse struct {
	Deleted    int64 `json:"deleted"`
	Upserted   int   `json:"upserted"`
	Placements int   `json:"placements"`
}

// SavePage 按提交的文档对账保存页面。
func (h *PageHandler) SavePage(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := middleware.LoggerFromContext(c)

	var doc page.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	res, err := h.store.Reconcile(ctx, accountID, doc)
	switch {
	case err == nil:
	case errors.Is(err, page.ErrInvalidDocument):
		metrics.ObservePageSaveFailure()
		BadRequest(c, err.Error())
		return
	case errors.Is(err, pagestore.ErrForeignBlock):
		metrics.ObservePageSaveFailure()
		logger.Warn("save rejected: foreign block id")
		Conflict(c, err.Error())
		return
	default:
		metrics.ObservePageSaveFailure()
		logger.Error("reconcile page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	metrics.ObservePageSave(int(res.Deleted), res.Upserted, res.Placements)

	h.afterSave(ctx, accountID, middleware.GetCorrelationID(c), logger)
	c.JSON(http.StatusOK, saveResponse{Deleted: res.Deleted, Upserted: res.Upserted, Placements: res.Placements})
}

// afterSave 清理公开缓存、通知前端并投递发布任务。失败只记录日志，保存结果不受影响。
func (h *PageHandler) afterSave(ctx context.Context, accountID uint, correlationID string, logger *slog.Logger) {
	if account, err := h.store.Account(ctx, accountID); err != nil {
		logger.Warn("lookup account for cache invalidation failed", slog.Any("error", err))
	} else if err := h.redis.Del(ctx, publicCacheKeys(account.Slug)...).Err(); err != nil {
		logger.Warn("invalidate public cache failed", slog.Any("error", err))
	}

	msg := notify.Message{
		Type:          notify.TypePageSaved,
		Status:        notify.StatusCompleted,
		AccountID:     accountID,
		CorrelationID: correlationID,
		ErrorCode:     errcode.OK,
	}
	if err := notify.Publish(ctx, h.redis, msg); err != nil {
		logger.Warn("publish save notification failed", slog.Any("error", err))
	}

	task, err := tasks.NewPagePublishTask(accountID, correlationID)
	if err != nil {
		logger.Error("build publish task failed", slog.Any("error", err))
		return
	}
	if _, err := h.queue.EnqueueContext(ctx, task); err != nil {
		logger.Error("enqueue publish task failed", slog.Any("error", err))
	}
}

// CreateBlock 为编辑器中的草稿块分配服务端 ID。
func (h *PageHandler) CreateBlock(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var b block.Block
	if err := c.ShouldBindJSON(&b); err != nil {
		BadRequest(c, err.Error())
		return
	}

	created, err := h.store.CreateBlock(c.Request.Context(), accountID, b)
	if err != nil {
		if errors.Is(err, block.ErrInvalidPayload) || errors.Is(err, block.ErrUnknownKind) || errors.Is(err, block.ErrKindMismatch) {
			BadRequest(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("create block failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusCreated, created)
}

type snapshotLinkResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetSnapshotLink 返回最近一次发布的页面快照的限时下载链接。
func (h *PageHandler) GetSnapshotLink(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	device, err := layout.ParseDevice(c.DefaultQuery("device", string(layout.Desktop)))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	key := storage.SnapshotKey(accountID, string(device))

	exists, err := h.snapshots.Exists(ctx, key)
	if err != nil {
		logger.Error("stat snapshot failed", slog.String("key", key), slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !exists {
		NotFound(c, "snapshot not published yet")
		return
	}

	url, err := h.snapshots.GeneratePresignedURL(ctx, key, h.linkTTL)
	if err != nil {
		logger.Error("presign snapshot failed", slog.String("key", key), slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, snapshotLinkResponse{URL: url, ExpiresIn: int(h.linkTTL.Seconds())})
}

type gridBounds struct {
	MinColumns     int `json:"min_columns"`
	MaxColumns     int `json:"max_columns"`
	MinRowHeightPx int `json:"min_row_height_px"`
	MaxRowHeightPx int `json:"max_row_height_px"`
}

// EditorConfig 是编辑器启动时需要的参数。
type EditorConfig struct {
	HistoryLimit int             `json:"history_limit"`
	Defaults     layout.Profiles `json:"defaults"`
	Bounds       gridBounds      `json:"bounds"`
}

// GetEditorConfig 返回历史栈容量与网格默认值、上下限。
func (h *PageHandler) GetEditorConfig(c *gin.Context) {
	c.JSON(http.StatusOK, EditorConfig{
		HistoryLimit: h.historyLimit,
		Defaults:     layout.DefaultProfiles(),
		Bounds: gridBounds{
			MinColumns:     layout.MinColumns,
			MaxColumns:     layout.MaxColumns,
			MinRowHeightPx: layout.MinRowHeightPx,
			MaxRowHeightPx: layout.MaxRowHeightPx,
		},
	})
}
