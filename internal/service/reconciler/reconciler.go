package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"payment-core/internal/model"
	"payment-core/internal/service"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
)

// DepositStore 对账循环需要的账本操作子集
// 具体实现见 deposit 包
type DepositStore interface {
	Get(ctx context.Context, id uint64) (*model.Deposit, error)
	MarkExpired(ctx context.Context, id uint64) error
	ListPendingIDs(ctx context.Context) ([]uint64, error)
}

// Supervisor 充值对账调度器
// 每笔 pending 充值一个 watcher goroutine，统一管理生命周期
type Supervisor struct {
	oracle   service.BalanceOracle
	settler  service.Settler
	deposits DepositStore
	notifier service.Notifier // 可为 nil (纯 API 模式)
	interval time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	cancels map[uint64]context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(oracle service.BalanceOracle, settler service.Settler, deposits DepositStore, notifier service.Notifier, interval time.Duration) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		oracle:     oracle,
		settler:    settler,
		deposits:   deposits,
		notifier:   notifier,
		interval:   interval,
		rootCtx:    ctx,
		rootCancel: cancel,
		cancels:    make(map[uint64]context.CancelFunc),
	}
}

// Watch 为一笔充值单启动 watcher，重复调用是幂等的
func (s *Supervisor) Watch(depositID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cancels[depositID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.rootCtx)
	s.cancels[depositID] = cancel
	s.wg.Add(1)
	monitor.Business.ReconcilerActiveTasks.Inc()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, depositID)
			s.mu.Unlock()
			monitor.Business.ReconcilerActiveTasks.Dec()
			s.wg.Done()
		}()
		s.watch(ctx, depositID)
	}()
}

// Resume 启动时恢复全部 pending 充值单的 watcher
// 必须在 HTTP 服务对外之前调用；过期时间用单据原值，不重置
func (s *Supervisor) Resume(ctx context.Context) error {
	pending, err := s.deposits.ListPendingIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range pending {
		s.Watch(id)
	}

	if len(pending) > 0 {
		logger.Info("resumed deposit watchers", zap.Int("count", len(pending)))
	}

	return nil
}

// Shutdown 取消所有 watcher 并等待退出，ctx 超时则放弃等待
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("reconciler drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch 对账主循环
// 每轮: 重读状态 → 过期检查 → 余额查询 → 精确匹配则结算
// 过期判断先于余额判断；oracle 失败只跳过本轮
func (s *Supervisor) watch(ctx context.Context, depositID uint64) {
	var lastMismatch int64

	for {
		timer := prometheus.NewTimer(monitor.Business.PollDuration)
		done := s.poll(ctx, depositID, &lastMismatch)
		timer.ObserveDuration()

		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// poll 执行一轮对账，返回 true 表示 watcher 可以退出
func (s *Supervisor) poll(ctx context.Context, depositID uint64, lastMismatch *int64) bool {
	d, err := s.deposits.Get(ctx, depositID)
	if err != nil {
		if err == errno.ErrDepositNotFound {
			logger.Error("watched deposit vanished", zap.Uint64("deposit_id", depositID))
			return true
		}
		logger.Warn("reconcile reload failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
		return false
	}

	// 其他路径 (取消等) 已经收尾
	if d.Terminal() {
		return true
	}

	if !time.Now().Before(d.ExpiresAt) {
		if err := s.deposits.MarkExpired(ctx, depositID); err != nil {
			if err == errno.ErrSettlementConflict {
				return true // 已被并发处理
			}
			logger.Error("mark expired failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
			return false
		}
		s.notifyResolved(ctx, depositID)
		return true
	}

	balance, err := s.oracle.TokenBalance(ctx, d.WalletAddress)
	if err != nil {
		// oracle 抖动只跳过本轮，不影响状态
		logger.Warn("oracle query failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
		return false
	}

	if balance == d.InitialBalance+d.Amount {
		if err := s.settler.Settle(ctx, depositID); err != nil {
			if err == errno.ErrSettlementConflict {
				logger.Warn("late balance match after terminal state",
					zap.Uint64("deposit_id", depositID))
				return true
			}
			logger.Error("settle failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
			return false
		}
		s.notifyResolved(ctx, depositID)
		return true
	}

	if balance != d.InitialBalance && balance != *lastMismatch {
		// 到账金额与单据不符，挂起等人工对账
		*lastMismatch = balance
		monitor.Business.BalanceMismatchTotal.Inc()
		logger.Warn("balance delta does not match deposit",
			zap.Uint64("deposit_id", depositID),
			zap.Int64("initial", d.InitialBalance),
			zap.Int64("expected", d.InitialBalance+d.Amount),
			zap.Int64("observed", balance))
	}

	return false
}

func (s *Supervisor) notifyResolved(ctx context.Context, depositID uint64) {
	if s.notifier == nil {
		return
	}
	d, err := s.deposits.Get(ctx, depositID)
	if err != nil {
		logger.Error("load deposit for notify failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
		return
	}
	if err := s.notifier.NotifyDepositResolved(ctx, d); err != nil {
		logger.Error("enqueue notify failed", zap.Uint64("deposit_id", depositID), zap.Error(err))
	}
}
