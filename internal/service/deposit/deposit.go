package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-core/internal/model"
	"payment-core/internal/service"
	"payment-core/internal/service/walletpool"
	"payment-core/pkg/crypto_util"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
	"payment-core/pkg/safe_random"
)

// Service 充值账本
// 行只追加不删除；所有状态迁移都在行锁事务内完成
type Service struct {
	db     *gorm.DB
	pool   *walletpool.Pool
	oracle service.BalanceOracle
	expiry time.Duration
}

func NewService(db *gorm.DB, pool *walletpool.Pool, oracle service.BalanceOracle, expiry time.Duration) *Service {
	return &Service{
		db:     db,
		pool:   pool,
		oracle: oracle,
		expiry: expiry,
	}
}

// Create 创建充值单
// 同一用户同一时刻只允许一笔 pending；冲突时返回已存在的单据和 ErrDepositPendingExists。
// 初始余额查询失败则不创建单据 (没有基准余额无法对账)。
func (s *Service) Create(ctx context.Context, userID int64, amount int64) (*model.Deposit, error) {
	if amount <= 0 {
		return nil, errno.ErrDepositInvalidAmount
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, errno.ErrDatabase
	}

	var existing model.Deposit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.DepositStatusPending).
		First(&existing).Error
	if err == nil {
		return &existing, errno.ErrDepositPendingExists
	}
	if err != gorm.ErrRecordNotFound {
		return nil, errno.ErrDatabase
	}

	wallet, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	initial, err := s.oracle.TokenBalance(ctx, wallet.Address)
	if err != nil {
		// 没拿到基准余额就放回钱包，不建单
		if rerr := s.pool.Release(s.db.WithContext(ctx), wallet.Address); rerr != nil {
			logger.Error("release wallet after oracle failure", zap.Error(rerr))
		}
		return nil, errno.ErrOracleUnavailable
	}

	now := time.Now()
	d := &model.Deposit{
		Reference:      newReference(userID, wallet.Address, amount),
		UserID:         userID,
		WalletAddress:  wallet.Address,
		Amount:         amount,
		InitialBalance: initial,
		Status:         model.DepositStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		if rerr := s.pool.Release(s.db.WithContext(ctx), wallet.Address); rerr != nil {
			logger.Error("release wallet after create failure", zap.Error(rerr))
		}
		// 并发建单撞上 partial unique index: 和顺序路径一样按已存在 pending 返回
		if isUniqueViolation(err) {
			var existing model.Deposit
			if ferr := s.db.WithContext(ctx).
				Where("user_id = ? AND status = ?", userID, model.DepositStatusPending).
				First(&existing).Error; ferr == nil {
				return &existing, errno.ErrDepositPendingExists
			}
			return nil, errno.ErrDepositPendingExists
		}
		logger.Error("create deposit failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, errno.ErrDatabase
	}

	monitor.Business.DepositsCreatedTotal.Inc()
	logger.Info("deposit created",
		zap.Uint64("deposit_id", d.ID),
		zap.Int64("user_id", userID),
		zap.String("wallet", wallet.Address),
		zap.Int64("amount", amount))

	return d, nil
}

// ListPendingIDs 返回所有 pending 充值单的 ID (启动恢复用)
func (s *Service) ListPendingIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.Deposit{}).
		Where("status = ?", model.DepositStatusPending).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Get 按 ID 查询充值单
func (s *Service) Get(ctx context.Context, id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrDepositNotFound
		}
		return nil, errno.ErrDatabase
	}
	return &d, nil
}

// Cancel 用户主动取消
// 只有 pending 可取消；钱包在同一事务内放回池子
func (s *Service) Cancel(ctx context.Context, id uint64) (*model.Deposit, error) {
	var d model.Deposit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&d, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errno.ErrDepositNotFound
			}
			return errno.ErrDatabase
		}

		if d.Status != model.DepositStatusPending {
			return errno.ErrDepositNotPending
		}

		if err := tx.Model(&d).Update("status", model.DepositStatusCanceled).Error; err != nil {
			return errno.ErrDatabase
		}
		d.Status = model.DepositStatusCanceled

		return s.pool.Release(tx, d.WalletAddress)
	})
	if err != nil {
		return nil, err
	}

	monitor.Business.DepositsResolvedTotal.WithLabelValues(model.DepositStatusCanceled).Inc()
	logger.Info("deposit canceled", zap.Uint64("deposit_id", d.ID))

	return &d, nil
}

// MarkExpired 把超时的 pending 单置为 expired
// 已不在 pending 时返回 ErrSettlementConflict (并发下正常，调用方忽略即可)
func (s *Service) MarkExpired(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d model.Deposit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&d, "id = ?", id).Error; err != nil {
			return err
		}

		if d.Status != model.DepositStatusPending {
			return errno.ErrSettlementConflict
		}

		if err := tx.Model(&d).Update("status", model.DepositStatusExpired).Error; err != nil {
			return err
		}

		return s.pool.Release(tx, d.WalletAddress)
	})
	if err != nil {
		return err
	}

	monitor.Business.DepositsResolvedTotal.WithLabelValues(model.DepositStatusExpired).Inc()
	logger.Info("deposit expired", zap.Uint64("deposit_id", id))

	return nil
}

// isUniqueViolation 识别唯一约束冲突 (Postgres 23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// newReference 生成对外展示的充值参考号 (blake3, 64 hex chars)
func newReference(userID int64, wallet string, amount int64) string {
	nonce, _ := safe_random.GenerateRandomBytes(8)
	seed := fmt.Sprintf("%d:%s:%d:%d:%x", userID, wallet, amount, time.Now().UnixNano(), nonce)
	return crypto_util.CalculateBlake3([]byte(seed))
}
