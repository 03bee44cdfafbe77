package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"payment-core/internal/model"
	"payment-core/internal/worker/tasks"
)

// Client 封装 Asynq Client
type Client struct {
	client *asynq.Client
}

// NewClient 初始化 Client
// addr: "localhost:6379"
func NewClient(addr string, password string, db int) *Client {
	c := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{client: c}
}

// Enqueue 将任务推送到队列
func (c *Client) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.Enqueue(task, opts...)
}

// NotifyDepositResolved 终态通知入队，实现 service.Notifier
func (c *Client) NotifyDepositResolved(_ context.Context, d *model.Deposit) error {
	task, err := tasks.NewDepositNotifyTask(d.ID, d.UserID, d.Status)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, asynq.Queue("critical"))
	return err
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}
