package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"phFolio/internal/api/middleware"
	"phFolio/internal/layout"
	"phFolio/internal/metrics"
	"phFolio/internal/pagestore"
	"phFolio/internal/render"
)

const publicCacheKeyPrefix = "public:page:"

// PublicPages 渲染公开页面，由 pagestore.Store 实现。
type PublicPages interface {
	Public(ctx context.Context, slug string, device layout.Device) (render.Page, error)
}

// PublicHandler 提供无需登录的只读页面。
type PublicHandler struct {
	pages    PublicPages
	redis    RedisStore
	cacheTTL time.Duration
}

// NewPublicHandler 构造公开页面处理器；cacheTTL 为 0 时不使用缓存。
func NewPublicHandler(pages PublicPages, redisClient RedisStore, cacheTTL time.Duration) *PublicHandler {
	return &PublicHandler{pages: pages, redis: redisClient, cacheTTL: cacheTTL}
}

func publicCacheKey(slug string, device layout.Device) string {
	return publicCacheKeyPrefix + slug + ":" + string(device)
}

func publicCacheKeys(slug string) []string {
	keys := make([]string, 0, len(layout.Devices()))
	for _, d := range layout.Devices() {
		keys = append(keys, publicCacheKey(slug, d))
	}
	return keys
}

// GetPage 返回 slug 对应页面在 ?device= 上的渲染结果，默认 desktop。
func (h *PublicHandler) GetPage(c *gin.Context) {
	slug := c.Param("slug")
	device, err := layout.ParseDevice(c.DefaultQuery("device", string(layout.Desktop)))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("slug", slug))
	key := publicCacheKey(slug, device)

	if h.cacheTTL > 0 {
		cached, err := h.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			metrics.ObservePublicCache("hit")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		case errors.Is(err, redis.Nil):
			metrics.ObservePublicCache("miss")
		default:
			metrics.ObservePublicCache("error")
			logger.Warn("read public cache failed", slog.Any("error", err))
		}
	}

	page, err := h.pages.Public(ctx, slug, device)
	if err != nil {
		if errors.Is(err, pagestore.ErrAccountNotFound) {
			NotFound(c, "page not found")
			return
		}
		logger.Error("render public page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	body, err := json.Marshal(page)
	if err != nil {
		logger.Error("encode public page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if h.cacheTTL > 0 {
		if err := h.redis.Set(ctx, key, body, h.cacheTTL).Err(); err != nil {
			logger.Warn("write public cache failed", slog.Any("error", err))
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
