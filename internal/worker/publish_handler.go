package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"phFolio/internal/errcode"
	"phFolio/internal/layout"
	"phFolio/internal/notify"
	"phFolio/internal/render"
	"phFolio/internal/storage"
	"phFolio/internal/tasks"
)

// PageRenderer 读取账号页面并渲染为只读结果。
type PageRenderer interface {
	Render(ctx context.Context, accountID uint, device layout.Device) (render.Page, error)
}

// SnapshotUploader 保存渲染后的 JSON 快照。
type SnapshotUploader interface {
	PutJSON(ctx context.Context, objectName string, body []byte) error
}

// PublishTaskHandler 负责消费页面发布任务：按设备渲染页面并上传快照。
type PublishTaskHandler struct {
	pages     PageRenderer
	snapshots SnapshotUploader
	notifier  notify.Publisher
	logger    *slog.Logger
}

// NewPublishTaskHandler 创建任务处理器。
func NewPublishTaskHandler(pages PageRenderer, snapshots SnapshotUploader, notifier notify.Publisher, logger *slog.Logger) *PublishTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishTaskHandler{
		pages:     pages,
		snapshots: snapshots,
		notifier:  notifier,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PublishTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.PagePublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.AccountID == 0 {
		log.Warn("publish task without account, skipping")
		return nil
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("account_id", uint64(payload.AccountID)),
	)
	log.Info("publishing page snapshots")

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		msg := notify.Message{
			Type:          notify.TypePagePublished,
			Status:        notify.StatusError,
			AccountID:     payload.AccountID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := notify.Publish(ctx, h.notifier, msg); err != nil {
			log.Error("publish error notification failed", slog.Any("error", err))
		}
	}()

	devices := make([]string, 0, len(layout.Devices()))
	for _, d := range layout.Devices() {
		page, err := h.pages.Render(ctx, payload.AccountID, d)
		if err != nil {
			log.Error("render page failed", slog.String("device", string(d)), slog.Any("error", err))
			return fmt.Errorf("render %s: %w", d, err)
		}
		body, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("encode %s snapshot: %w", d, err)
		}
		key := storage.SnapshotKey(payload.AccountID, string(d))
		if err := h.snapshots.PutJSON(ctx, key, body); err != nil {
			log.Error("upload snapshot failed", slog.String("key", key), slog.Any("error", err))
			return err
		}
		devices = append(devices, string(d))
	}

	msg := notify.Message{
		Type:          notify.TypePagePublished,
		Status:        notify.StatusCompleted,
		AccountID:     payload.AccountID,
		CorrelationID: payload.CorrelationID,
		Devices:       devices,
		ErrorCode:     errcode.OK,
	}
	if err := notify.Publish(ctx, h.notifier, msg); err != nil {
		// 快照已上传，通知失败不触发重试。
		log.Warn("publish notification failed", slog.Any("error", err))
	}

	log.Info("page snapshots published", slog.Int("devices", len(devices)))
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
