package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePagePublish = "page:publish"
)

// PagePublishPayload 描述发布页面快照所需的最小信息。
type PagePublishPayload struct {
	AccountID     uint   `json:"account_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPagePublishTask 构造一个新的页面发布任务。
func NewPagePublishTask(accountID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PagePublishPayload{
		AccountID:     accountID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePagePublish, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}
