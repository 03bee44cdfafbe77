package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"payment-core/internal/model"
	"payment-core/internal/service/mq"
	"payment-core/pkg/logger"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
// At-least-once: 发送成功才置 SENT，Consumer 需做好幂等
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:       db,
		producer: producer,
		interval: 500 * time.Millisecond,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("relay service started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("relay service stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *RelayService) processPendingMessages(ctx context.Context) {
	// 每次取 50 条，避免内存爆炸
	var messages []model.OutboxMessage
	if err := s.db.Where("status = ?", "PENDING").Limit(50).Find(&messages).Error; err != nil {
		logger.Error("relay query outbox failed", zap.Error(err))
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		// 用消息 ID 作为分区键，同一条 outbox 记录的重发落在同一分区
		key := strconv.FormatUint(msg.ID, 10)
		if err := s.producer.Publish(ctx, msg.Topic, key, msg.Payload); err != nil {
			logger.Error("relay publish failed", zap.Uint64("outbox_id", msg.ID), zap.Error(err))
			continue
		}

		if err := s.db.Model(&msg).Update("status", "SENT").Error; err != nil {
			// 更新失败下次会重发，交给消费端幂等
			logger.Error("relay mark sent failed", zap.Uint64("outbox_id", msg.ID), zap.Error(err))
		}
	}
}
