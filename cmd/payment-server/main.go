package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"

	"payment-core/internal/event"
	"payment-core/internal/handler"
	"payment-core/internal/server"
	"payment-core/internal/service"
	"payment-core/internal/service/deposit"
	"payment-core/internal/service/mq"
	"payment-core/internal/service/oracle"
	"payment-core/internal/service/reconciler"
	"payment-core/internal/service/settlement"
	"payment-core/internal/service/user"
	"payment-core/internal/service/walletpool"
	"payment-core/internal/worker"

	"payment-core/pkg/bip32"
	"payment-core/pkg/bip39"
	"payment-core/pkg/cache"
	"payment-core/pkg/config"
	"payment-core/pkg/database"
	"payment-core/pkg/keystore"
	"payment-core/pkg/logger"
	"payment-core/pkg/validator"
)

// @title Payment Core API
// @version 1.0
// @description Crypto deposit settlement service

// @host localhost:8001
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 初始化 Validator
	validator.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	if config.Global.App.APIKey == "" {
		logger.Fatal("启动失败: 未配置 app.api_key (access_token 鉴权密钥)")
	}

	// 2. 构造 DSN
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)

	// 3. 加载助记词
	// 优先从本地 Keystore 文件加载，明文配置只留给开发环境
	mnemonic := loadMnemonic()

	// 4. 连接数据库
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 5. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 6. 派生 Master Key
	mnemonicService := bip39.NewMnemonicService()
	seed := mnemonicService.MnemonicToSeed(mnemonic, "")

	hdWallet, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		logger.Fatal("生成 Master Key 失败", zap.Error(err))
	}
	masterKey := hdWallet.MasterKey()
	logger.Info("Master Key (XPrv) 加载成功 (内存中)")

	// 7. 多级缓存 L1: Memory, L2: Redis
	localCache := cache.NewMemoryCache(1*time.Minute, 5*time.Minute)
	redisCache := cache.NewRedisCache(rdb)
	multiCache := cache.NewMultiLevelCache(localCache, redisCache)

	// 8. 钱包池
	secret, err := hex.DecodeString(config.Global.Wallet.SecretKeyHex)
	if err != nil {
		logger.Fatal("wallet.secret_key_hex 不是合法的 hex", zap.Error(err))
	}
	pool, err := walletpool.NewPool(db, rdb, masterKey, secret)
	if err != nil {
		logger.Fatal("初始化钱包池失败", zap.Error(err))
	}

	// 9. 余额 Oracle
	// 没有 Oracle 无法建单，连不上直接失败
	orc, err := oracle.NewERC20Oracle(config.Global.Chain.RpcUrl, config.Global.Chain.TokenContract, multiCache)
	if err != nil {
		logger.Fatal("初始化 Oracle 失败", zap.Error(err))
	}

	decimals := config.Global.Chain.TokenDecimals
	if d, derr := orc.Decimals(context.Background()); derr == nil {
		decimals = d
	} else {
		logger.Warn("读取代币精度失败，使用配置兜底", zap.Int32("decimals", decimals), zap.Error(derr))
	}

	// 10. 业务服务
	expiry := time.Duration(config.Global.Deposit.ExpiryMin) * time.Minute
	pollInterval := time.Duration(config.Global.Deposit.PollIntervalSec) * time.Second

	deposits := deposit.NewService(db, pool, orc, expiry)
	engine := settlement.NewEngine(db, pool)
	users := user.NewService(db)

	// 11. 终态通知 (asynq)
	var notifier service.Notifier
	asynqClient := worker.NewClient(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	defer asynqClient.Close()
	if config.Global.Bot.WebhookUrl != "" {
		notifier = asynqClient

		workerServer := worker.NewServer(
			config.Global.Redis.Addr,
			config.Global.Redis.Password,
			config.Global.Redis.DB,
			10, // Concurrency
			config.Global.Bot.WebhookUrl,
		)
		workerServer.Start()
		defer workerServer.Stop()
	} else {
		logger.Warn("bot.webhook_url 未配置，终态不回调机器人")
	}

	// 12. 对账调度器
	supervisor := reconciler.NewSupervisor(orc, engine, deposits, notifier, pollInterval)

	// 13. 消息队列 + Outbox relay + 归集
	mqType := config.Global.Redis.MQType
	var producer mq.Producer
	var consumer mq.Consumer

	if mqType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		kafkaBrokers := config.Global.Kafka.Brokers
		producer = mq.NewKafkaProducer(kafkaBrokers, event.TopicDepositConfirmed)
		consumer = mq.NewKafkaConsumer(kafkaBrokers, "payment_sweeper_group")
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
		consumer = mq.NewRedisConsumer(rdb, "payment_sweeper", "sweeper-0")
	}

	relayService := service.NewRelayService(db, producer)
	go relayService.Start(context.Background())

	sweeper, err := service.NewSweeperService(db, consumer,
		config.Global.Chain.RpcUrl, masterKey,
		config.Global.Chain.TokenContract, config.Global.Chain.HotWallet, rdb)
	if err != nil {
		logger.Error("Sweeper 初始化失败", zap.Error(err))
	} else {
		go func() {
			if serr := sweeper.Start(context.Background()); serr != nil {
				logger.Error("Sweeper 运行出错", zap.Error(serr))
			}
		}()
	}

	// 14. 定时任务 (回收卡死的钱包)
	cronService := service.NewCronService(db, rdb)
	cronService.Start()
	defer cronService.Stop()

	// 15. HTTP Router
	depositHandler := handler.NewDepositHandler(deposits, supervisor, notifier, decimals)
	userHandler := handler.NewUserHandler(users, decimals)
	r := server.NewHTTPRouter(config.Global.App.APIKey, depositHandler, userHandler)

	// 16. 恢复 pending 充值单的 watcher
	// 必须在对外服务之前完成，过期时间沿用单据原值
	if err := supervisor.Resume(context.Background()); err != nil {
		logger.Fatal("恢复充值 watcher 失败", zap.Error(err))
	}

	// 17. 启动应用
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.OnShutdown("reconciler", supervisor.Shutdown)

	// 运行 (阻塞)
	app.Run()

	// 18. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("系统已退出")
}

// loadMnemonic 从 Keystore 或配置加载助记词
func loadMnemonic() string {
	keystorePath := config.Global.Wallet.KeystorePath
	keystorePassword := config.Global.Wallet.Password

	if _, err := os.Stat(keystorePath); err == nil {
		logger.Info("发现本地 Keystore 文件，尝试加载...", zap.String("path", keystorePath))

		if keystorePassword == "" {
			logger.Fatal("加载 Keystore 失败: 未提供密码 (环境变量 WALLET_PASSWORD)")
		}

		encryptedKey, err := keystore.LoadFromFile(keystorePath)
		if err != nil {
			logger.Fatal("读取 Keystore 文件失败", zap.Error(err))
		}

		mnemonic, err := keystore.DecryptMnemonic(encryptedKey, keystorePassword)
		if err != nil {
			logger.Fatal("解密 Keystore 失败: 密码错误或文件损坏", zap.Error(err))
		}

		logger.Info("成功从 Keystore 加载并解密助记词")
		return mnemonic
	}

	if config.Global.Wallet.Mnemonic != "" {
		logger.Warn("未找到 Keystore 文件，使用配置文件中的明文助记词 (仅限开发环境!)")
		return config.Global.Wallet.Mnemonic
	}

	logger.Fatal("启动失败: 未找到 Keystore 文件，且未配置助记词。请先运行 'payment-cli init' 初始化钱包。")
	return ""
}
