package settlement

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-core/internal/event"
	"payment-core/internal/model"
	"payment-core/internal/service/walletpool"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
)

// 返佣比例 (百分比，整数截断)
const (
	referralBonusL1Pct = 10
	referralBonusL2Pct = 3
)

// ReferralBonuses 按充值金额计算两级返佣 (最小单位，整数截断)
func ReferralBonuses(amount int64) (level1, level2 int64) {
	return amount * referralBonusL1Pct / 100, amount * referralBonusL2Pct / 100
}

// ledger 结算事务内的账本写操作
// 生产实现是 gorm 事务 (gormLedger)
type ledger interface {
	DepositForUpdate(id uint64) (*model.Deposit, error)
	ConfirmDeposit(id uint64, at time.Time) error
	UserForUpdate(id int64) (*model.User, error)
	CreditBalance(userID int64, amount int64) error
	CreditBonus(userID int64, amount int64) error
	ReleaseWallet(address string) error
	WalletIndex(address string) (int, error)
	AppendEvent(topic string, payload interface{}) error
}

// outcome 一次结算的结果，事务提交后用于打点
type outcome struct {
	deposit *model.Deposit
	bonus1  int64
	bonus2  int64
}

// settle 结算状态机主体
// 锁行后再次校验 pending；已被其他路径处理时返回 ErrSettlementConflict。
// 任何一步失败整体回滚，充值单保持 pending。
func settle(l ledger, depositID uint64) (*outcome, error) {
	d, err := l.DepositForUpdate(depositID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DepositStatusPending {
		return nil, errno.ErrSettlementConflict
	}

	if err := l.ConfirmDeposit(d.ID, time.Now()); err != nil {
		return nil, err
	}

	// 入账
	user, err := l.UserForUpdate(d.UserID)
	if err != nil {
		return nil, err
	}
	if err := l.CreditBalance(user.ID, d.Amount); err != nil {
		return nil, err
	}

	out := &outcome{deposit: d}

	// 一级返佣 10%，二级 3%，整数截断
	if user.ReferrerID != nil {
		l1, l2 := ReferralBonuses(d.Amount)
		ref, err := l.UserForUpdate(*user.ReferrerID)
		if err != nil {
			return nil, err
		}
		if err := l.CreditBonus(ref.ID, l1); err != nil {
			return nil, err
		}
		out.bonus1 = l1

		if ref.ReferrerID != nil {
			if err := l.CreditBonus(*ref.ReferrerID, l2); err != nil {
				return nil, err
			}
			out.bonus2 = l2
		}
	}

	// 钱包放回池子
	if err := l.ReleaseWallet(d.WalletAddress); err != nil {
		return nil, err
	}

	// Outbox 事件，relay 提交后异步投递
	idx, err := l.WalletIndex(d.WalletAddress)
	if err != nil {
		return nil, err
	}
	return out, l.AppendEvent(event.TopicDepositConfirmed, event.DepositConfirmedEvent{
		DepositID:     d.ID,
		UserID:        d.UserID,
		WalletAddress: d.WalletAddress,
		HDPathIndex:   idx,
		Amount:        d.Amount,
	})
}

// Engine 结算引擎
// 确认、入账、两级返佣、钱包回收、Outbox 事件在一个事务里提交
type Engine struct {
	db   *gorm.DB
	pool *walletpool.Pool
}

func NewEngine(db *gorm.DB, pool *walletpool.Pool) *Engine {
	return &Engine{db: db, pool: pool}
}

// Settle 原子结算一笔充值
func (e *Engine) Settle(ctx context.Context, depositID uint64) error {
	var out *outcome

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var serr error
		out, serr = settle(&gormLedger{tx: tx, pool: e.pool}, depositID)
		return serr
	})
	if err != nil {
		return err
	}

	d := out.deposit
	monitor.Business.DepositsResolvedTotal.WithLabelValues(model.DepositStatusConfirmed).Inc()
	monitor.Business.SettledAmountTotal.Add(float64(d.Amount))
	if out.bonus1 > 0 {
		monitor.Business.ReferralBonusTotal.WithLabelValues("1").Add(float64(out.bonus1))
	}
	if out.bonus2 > 0 {
		monitor.Business.ReferralBonusTotal.WithLabelValues("2").Add(float64(out.bonus2))
	}

	logger.Info("deposit settled",
		zap.Uint64("deposit_id", d.ID),
		zap.Int64("user_id", d.UserID),
		zap.Int64("amount", d.Amount),
		zap.String("bonus", strconv.FormatInt(out.bonus1, 10)+"/"+strconv.FormatInt(out.bonus2, 10)))

	return nil
}

// gormLedger ledger 的 gorm 事务实现
type gormLedger struct {
	tx   *gorm.DB
	pool *walletpool.Pool
}

func (g *gormLedger) DepositForUpdate(id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := g.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (g *gormLedger) ConfirmDeposit(id uint64, at time.Time) error {
	return g.tx.Model(&model.Deposit{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.DepositStatusConfirmed,
			"confirmed_at": at,
		}).Error
}

func (g *gormLedger) UserForUpdate(id int64) (*model.User, error) {
	var u model.User
	if err := g.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (g *gormLedger) CreditBalance(userID int64, amount int64) error {
	return g.tx.Model(&model.User{}).Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

func (g *gormLedger) CreditBonus(userID int64, amount int64) error {
	return g.tx.Model(&model.User{}).Where("id = ?", userID).
		Update("bonus_balance", gorm.Expr("bonus_balance + ?", amount)).Error
}

func (g *gormLedger) ReleaseWallet(address string) error {
	return g.pool.Release(g.tx, address)
}

func (g *gormLedger) WalletIndex(address string) (int, error) {
	var w model.Wallet
	if err := g.tx.First(&w, "address = ?", address).Error; err != nil {
		return 0, err
	}
	return w.HDPathIndex, nil
}

func (g *gormLedger) AppendEvent(topic string, payload interface{}) error {
	return model.CreateOutboxMessage(g.tx, topic, payload)
}
