package walletpool

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-core/internal/model"
	"payment-core/pkg/address"
	"payment-core/pkg/bip32"
	"payment-core/pkg/crypto_util"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
)

// hdIndexKey Redis 原子递增，保证派生索引全局唯一
const hdIndexKey = "payment:wallet:hd_index"

// Pool 收款钱包池
// 池空时按需派生新钱包 (m/0/index)，钱包只进不出
type Pool struct {
	db        *gorm.DB
	redis     *redis.Client
	masterKey bip32.ExtendedKey // Root XPrv
	ethGen    *address.ETHGenerator
	secret    []byte // 私钥落库前的 AES-GCM 加密密钥
}

func NewPool(db *gorm.DB, rdb *redis.Client, masterKey bip32.ExtendedKey, secret []byte) (*Pool, error) {
	if !masterKey.IsPrivate() {
		return nil, fmt.Errorf("wallet pool requires the extended private key")
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("wallet secret key must be 32 bytes, got %d", len(secret))
	}

	return &Pool{
		db:        db,
		redis:     rdb,
		masterKey: masterKey,
		ethGen:    address.NewETHGenerator(),
		secret:    secret,
	}, nil
}

// Acquire 取一个空闲钱包并标记 in_use
// 无空闲钱包时派生一个新的。任何失败返回 ErrWalletProvisioning。
func (p *Pool) Acquire(ctx context.Context) (*model.Wallet, error) {
	var wallet model.Wallet

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SKIP LOCKED: 并发下单时各自拿到不同的空闲钱包
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("in_use = ?", false).
			Order("id").
			First(&wallet).Error
		if err == gorm.ErrRecordNotFound {
			w, perr := p.provision(ctx)
			if perr != nil {
				return perr
			}
			w.InUse = true
			if cerr := tx.Create(w).Error; cerr != nil {
				return cerr
			}
			wallet = *w
			return nil
		}
		if err != nil {
			return err
		}

		return tx.Model(&wallet).Update("in_use", true).Error
	})

	if err != nil {
		logger.Error("wallet acquire failed", zap.Error(err))
		return nil, errno.ErrWalletProvisioning
	}

	wallet.InUse = true
	return &wallet, nil
}

// Release 把钱包标回空闲
// 必须在充值单终态迁移的同一个事务里调用
func (p *Pool) Release(tx *gorm.DB, walletAddress string) error {
	return tx.Model(&model.Wallet{}).
		Where("address = ?", walletAddress).
		Update("in_use", false).Error
}

// provision 派生一个新的池钱包
// 路径: m/0/index，index 来自 Redis INCR
func (p *Pool) provision(ctx context.Context) (*model.Wallet, error) {
	index, err := p.redis.Incr(ctx, hdIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate hd index: %w", err)
	}
	hdPathIndex := int(index)

	chainKey, err := p.masterKey.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("derive chain key: %w", err)
	}
	childKey, err := chainKey.Derive(uint32(hdPathIndex))
	if err != nil {
		return nil, fmt.Errorf("derive child key %d: %w", hdPathIndex, err)
	}

	ecPubKey, err := childKey.ECPubKey()
	if err != nil {
		return nil, err
	}
	addr, err := p.ethGen.PubKeyToAddress(ecPubKey.SerializeUncompressed())
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}

	ecPrivKey, err := childKey.ECPrivKey()
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto_util.EncryptAESGCM(p.secret, ecPrivKey.Serialize())
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	monitor.Business.WalletsProvisionedTotal.Inc()
	logger.Info("provisioned pool wallet",
		zap.String("address", addr), zap.Int("hd_path_index", hdPathIndex))

	return &model.Wallet{
		Address:     addr,
		SecretKey:   hex.EncodeToString(encrypted),
		HDPathIndex: hdPathIndex,
	}, nil
}
