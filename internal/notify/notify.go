// Package notify 定义通过 Redis Pub/Sub 转发给前端的 WebSocket 消息。
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 消息类型。
const (
	TypePageSaved     = "page.saved"
	TypePagePublished = "page.published"
)

// 消息状态。
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Message 是统一的 WebSocket 消息协议。
// 注意：这里的字段名与前端解析保持一致。
type Message struct {
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	AccountID     uint     `json:"account_id"`
	CorrelationID string   `json:"correlation_id"`
	Devices       []string `json:"devices,omitempty"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
}

// Publisher 是 redis.Client 中发布消息所需的部分。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Channel 返回账号的通知频道名。
func Channel(accountID uint) string {
	return fmt.Sprintf("user_notify:%d", accountID)
}

// Publish 序列化并发布消息到 msg.AccountID 对应的频道。
func Publish(ctx context.Context, p Publisher, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := Channel(msg.AccountID)
	if err := p.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
