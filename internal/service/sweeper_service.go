package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payment-core/internal/event"
	"payment-core/internal/model"
	"payment-core/internal/service/mq"
	"payment-core/pkg/bip32"
	"payment-core/pkg/logger"
	"payment-core/pkg/monitor"
	"payment-core/pkg/utils/lock"
)

// erc20TransferSelector = keccak256("transfer(address,uint256)")[:4]
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// SweeperService 负责资金归集
// 消费充值确认事件，把池钱包里的代币转到热钱包
// 前提: 池钱包的 gas (原生币) 由运维侧统一充注
type SweeperService struct {
	db        *gorm.DB
	consumer  mq.Consumer
	ethClient *ethclient.Client
	masterKey bip32.ExtendedKey // Root XPrv
	chainID   *big.Int
	distLock  lock.DistributedLock

	tokenContract common.Address
	hotWalletAddr common.Address
}

func NewSweeperService(db *gorm.DB, consumer mq.Consumer, rpcURL string, masterKey bip32.ExtendedKey, tokenContract, hotWallet string, redisClient *redis.Client) (*SweeperService, error) {
	if !masterKey.IsPrivate() {
		return nil, fmt.Errorf("sweeper requires the extended private key")
	}

	// RPC 连接失败不阻塞启动，发送阶段会重试
	client, err := ethclient.Dial(rpcURL)
	chainID := big.NewInt(1)

	if err != nil {
		logger.Warn("sweeper: eth rpc unreachable, running in dry-run mode",
			zap.String("rpc", rpcURL), zap.Error(err))
		client = nil
	} else {
		cid, err := client.ChainID(context.Background())
		if err == nil {
			chainID = cid
			logger.Info("sweeper: connected to eth node", zap.String("chain_id", chainID.String()))
		}
	}

	return &SweeperService{
		db:            db,
		consumer:      consumer,
		ethClient:     client,
		masterKey:     masterKey,
		chainID:       chainID,
		tokenContract: common.HexToAddress(tokenContract),
		hotWalletAddr: common.HexToAddress(hotWallet),
		distLock:      lock.NewRedisLock(redisClient),
	}, nil
}

func (s *SweeperService) Start(ctx context.Context) error {
	logger.Info("sweeper service started")
	return s.consumer.Subscribe(ctx, event.TopicDepositConfirmed, s.handleDepositConfirmed)
}

func (s *SweeperService) handleDepositConfirmed(msg *mq.Message) error {
	var evt event.DepositConfirmedEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		logger.Error("sweeper: malformed event payload", zap.Error(err))
		return nil // 格式错误，不再重试
	}

	logger.Info("sweeper: deposit confirmed event received",
		zap.Uint64("deposit_id", evt.DepositID),
		zap.String("wallet", evt.WalletAddress),
		zap.Int64("amount", evt.Amount))

	// 分布式锁: 同一充值单同一时刻只被一个节点归集
	lockKey := fmt.Sprintf("sweeper:deposit:%d", evt.DepositID)
	locked, err := s.distLock.Acquire(context.Background(), lockKey, 10*time.Minute)
	if err != nil {
		return err // 锁系统错误，重试
	}
	if !locked {
		logger.Debug("sweeper: lock held elsewhere, skipping", zap.Uint64("deposit_id", evt.DepositID))
		return nil
	}
	defer s.distLock.Release(context.Background(), lockKey)

	// DB 去重兜底 (collections.deposit_id 唯一索引)
	var count int64
	s.db.Model(&model.Collection{}).Where("deposit_id = ?", evt.DepositID).Count(&count)
	if count > 0 {
		logger.Debug("sweeper: deposit already collected", zap.Uint64("deposit_id", evt.DepositID))
		return nil
	}

	return s.sweepToken(context.Background(), &evt)
}

func (s *SweeperService) sweepToken(ctx context.Context, evt *event.DepositConfirmedEvent) error {
	timer := prometheus.NewTimer(monitor.Business.SweepDuration)
	defer timer.ObserveDuration()

	// 派生池钱包私钥: m/0/index
	chainKey, err := s.masterKey.Derive(0)
	if err != nil {
		return err
	}
	childKey, err := chainKey.Derive(uint32(evt.HDPathIndex))
	if err != nil {
		return err
	}
	privKey, err := childKey.ECPrivKey()
	if err != nil {
		return err
	}
	ecdsaPrivateKey := privKey.ToECDSA()

	fromAddr := common.HexToAddress(evt.WalletAddress)
	amount := big.NewInt(evt.Amount)

	nonce := uint64(0)
	gasPrice := big.NewInt(20000000000) // 20 Gwei fallback
	gasLimit := uint64(65000)           // ERC-20 transfer 上限

	if s.ethClient != nil {
		n, err := s.ethClient.PendingNonceAt(ctx, fromAddr)
		if err != nil {
			return err
		}
		nonce = n

		if gp, err := s.ethClient.SuggestGasPrice(ctx); err == nil {
			gasPrice = gp
		}
	}

	// transfer(hotWallet, amount)
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(s.hotWalletAddr.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

	tx := types.NewTransaction(nonce, s.tokenContract, big.NewInt(0), gasLimit, gasPrice, data)

	// EIP-155 签名
	signer := types.NewEIP155Signer(s.chainID)
	signedTx, err := types.SignTx(tx, signer, ecdsaPrivateKey)
	if err != nil {
		return fmt.Errorf("sign sweep tx: %w", err)
	}

	if s.ethClient != nil {
		if err := s.ethClient.SendTransaction(ctx, signedTx); err != nil {
			logger.Error("sweeper: broadcast failed", zap.Error(err))
			return err
		}
		logger.Info("sweeper: sweep tx broadcast",
			zap.Uint64("deposit_id", evt.DepositID),
			zap.String("tx_hash", signedTx.Hash().Hex()))
	} else {
		logger.Warn("sweeper: dry-run, tx not broadcast", zap.String("tx_hash", signedTx.Hash().Hex()))
	}

	gasFee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)

	collection := model.Collection{
		DepositID:   evt.DepositID,
		TxHash:      signedTx.Hash().Hex(),
		FromAddress: evt.WalletAddress,
		ToAddress:   s.hotWalletAddr.Hex(),
		Amount:      evt.Amount,
		GasFeeWei:   gasFee.String(),
		Status:      "pending",
		CreatedAt:   time.Now(),
	}
	return s.db.Create(&collection).Error
}
