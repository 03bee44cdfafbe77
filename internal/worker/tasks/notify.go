package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"payment-core/pkg/logger"
)

// 任务类型常量
const (
	TypeDepositNotify = "deposit:notify"
)

// DepositNotifyPayload 终态通知任务参数
type DepositNotifyPayload struct {
	DepositID uint64 `json:"deposit_id"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
}

// NewDepositNotifyTask 创建终态通知任务
// 最多重试 5 次，指数退避由 asynq 默认策略处理
func NewDepositNotifyTask(depositID uint64, userID int64, status string) (*asynq.Task, error) {
	payload, err := json.Marshal(DepositNotifyPayload{
		DepositID: depositID,
		UserID:    userID,
		Status:    status,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDepositNotify, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// NewDepositNotifyHandler 构造通知任务处理器
// 把终态 POST 给 bot 的 webhook，bot 负责渲染用户消息
func NewDepositNotifyHandler(webhookURL string, client *http.Client) asynq.HandlerFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context, t *asynq.Task) error {
		var p DepositNotifyPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// 解析失败重试也没用，进 Archived 队列排查
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}

		body, _ := json.Marshal(p)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %v: %w", err, asynq.SkipRetry)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}

		logger.Info("deposit notify delivered",
			zap.Uint64("deposit_id", p.DepositID),
			zap.String("status", p.Status))
		return nil
	}
}
