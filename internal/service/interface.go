package service

import (
	"context"

	"payment-core/internal/model"
)

// BalanceOracle 查询链上某地址的代币余额 (最小单位)
// 对账状态机只依赖这个接口，不关心具体链
type BalanceOracle interface {
	TokenBalance(ctx context.Context, address string) (int64, error)
}

// Notifier 在充值单进入终态后通知上游 bot
type Notifier interface {
	NotifyDepositResolved(ctx context.Context, d *model.Deposit) error
}

// Settler 执行充值确认的原子结算
// reconciler 依赖该接口，实现见 settlement 包
type Settler interface {
	Settle(ctx context.Context, depositID uint64) error
}
