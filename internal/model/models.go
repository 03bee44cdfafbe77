package model

import (
	"time"
)

// 充值单状态机: pending 是唯一非终态，终态之间不可迁移
const (
	DepositStatusPending   = "pending"
	DepositStatusConfirmed = "confirmed"
	DepositStatusExpired   = "expired"
	DepositStatusCanceled  = "canceled"
)

// DepositIDSeqStart 充值单号序列起点 (对外展示的单号从这里开始)
const DepositIDSeqStart = 187310

// User 用户表
// ID 直接使用上游 bot 的用户标识，不自增
// 余额以代币最小单位 (int64) 记账，展示层再做小数转换
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Balance      int64     `gorm:"not null;default:0" json:"balance"`
	BonusBalance int64     `gorm:"not null;default:0" json:"bonus_balance"` // 邀请返佣累计
	ReferrerID   *int64    `gorm:"index" json:"referrer_id,omitempty"`      // 一级邀请人
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Wallet 收款钱包池
// in_use 的翻转只发生在 Acquire 和充值单终态事务内
type Wallet struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address     string    `gorm:"type:varchar(42);not null;uniqueIndex" json:"address"`
	SecretKey   string    `gorm:"type:text;not null" json:"-"` // AES-GCM 加密后的私钥 hex
	HDPathIndex int       `gorm:"not null;uniqueIndex" json:"hd_path_index"`
	InUse       bool      `gorm:"not null;default:false;index" json:"in_use"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Deposit 充值记录表 (append-only，行永不删除)
// initial_balance 记录下单时刻钱包余额，对账时精确匹配 initial + amount
type Deposit struct {
	ID             uint64     `gorm:"primaryKey" json:"id"` // 序列从 187310 起，见 migrations
	Reference      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	WalletAddress  string     `gorm:"type:varchar(42);not null;index" json:"wallet_address"`
	Amount         int64      `gorm:"not null" json:"amount"`
	InitialBalance int64      `gorm:"not null" json:"initial_balance"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// Collection 资金归集记录
// deposit_id 唯一索引保证一笔充值只归集一次
type Collection struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	DepositID uint64 `gorm:"uniqueIndex;not null"`

	TxHash      string `gorm:"type:varchar(66);uniqueIndex;not null"`
	FromAddress string `gorm:"type:varchar(42);not null"`
	ToAddress   string `gorm:"type:varchar(42);not null"`
	Amount      int64  `gorm:"not null"` // 实际归集的代币数量 (最小单位)
	GasFeeWei   string `gorm:"type:varchar(32);not null"`

	Status string `gorm:"type:varchar(20);not null;default:'pending'"` // pending, confirmed, failed

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal 是否处于终态
func (d *Deposit) Terminal() bool {
	return d.Status != DepositStatusPending
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

func (Wallet) TableName() string {
	return "wallets"
}

func (Deposit) TableName() string {
	return "deposits"
}

func (Collection) TableName() string {
	return "collections"
}
