package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payment-core/internal/model"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
	"payment-core/pkg/utils/lock"
)

// CronService 周期性维护任务
type CronService struct {
	cron  *cron.Cron
	db    *gorm.DB
	redis *redis.Client
}

func NewCronService(db *gorm.DB, rdb *redis.Client) *CronService {
	return &CronService{
		cron:  cron.New(),
		db:    db,
		redis: rdb,
	}
}

func (s *CronService) Start() {
	// 注册任务
	_, _ = s.cron.AddFunc("@every 5m", s.ReleaseStuckWallets)

	s.cron.Start()
	logger.Info("Cron Service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("Cron Service stopped")
}

// ReleaseStuckWallets 回收因崩溃卡在 in_use 的钱包
// 条件: in_use=true 且名下没有 pending 充值单，并且至少闲置了一个过期窗口
// 顺带刷新空闲钱包池的 gauge
func (s *CronService) ReleaseStuckWallets() {
	ctx := context.Background()
	lockKey := "cron:lock:release_wallets"

	// 分布式锁防止多实例同时执行 (TTL 1m)
	locker := lock.NewRedisLock(s.redis)
	locked, err := locker.Acquire(ctx, lockKey, time.Minute)
	if err != nil || !locked {
		logger.Debug("ReleaseStuckWallets: lock held elsewhere, skipping")
		return
	}
	defer locker.Release(ctx, lockKey)

	// 子查询: 仍有 pending 充值单挂着的钱包地址
	sub := s.db.Model(&model.Deposit{}).
		Select("wallet_address").
		Where("status = ?", model.DepositStatusPending)

	res := s.db.Model(&model.Wallet{}).
		Where("in_use = ?", true).
		Where("address NOT IN (?)", sub).
		Where("updated_at < ?", time.Now().Add(-30*time.Minute)).
		Update("in_use", false)

	if res.Error != nil {
		logger.Error("release stuck wallets failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		logger.Warn("released stuck wallets", zap.Int64("count", res.RowsAffected))
	}

	var idle int64
	if err := s.db.Model(&model.Wallet{}).Where("in_use = ?", false).Count(&idle).Error; err == nil {
		monitor.Business.WalletPoolIdle.Set(float64(idle))
	}
}
