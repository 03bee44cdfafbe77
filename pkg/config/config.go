package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Deposit DepositConfig `mapstructure:"deposit"`
	Bot     BotConfig     `mapstructure:"bot"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	// APIKey 共享密钥，所有业务接口必须携带 access_token 头
	APIKey string `mapstructure:"api_key"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ChainConfig 链上参数: RPC 节点和代币合约
type ChainConfig struct {
	RpcUrl        string `mapstructure:"rpc_url"`
	TokenContract string `mapstructure:"token_contract"`
	// TokenDecimals 仅作为链上 decimals() 不可达时的兜底
	TokenDecimals int32  `mapstructure:"token_decimals"`
	HotWallet     string `mapstructure:"hot_wallet"`
}

// DepositConfig 充值对账参数
type DepositConfig struct {
	// PollIntervalSec 每笔充值的余额轮询间隔 (秒)
	PollIntervalSec int `mapstructure:"poll_interval_sec"`
	// ExpiryMin 充值有效期 (分钟)，到期未到账自动作废
	ExpiryMin int `mapstructure:"expiry_min"`
}

// BotConfig 机器人回调配置
type BotConfig struct {
	// WebhookUrl 充值状态变化时回调机器人的地址，为空则只记日志
	WebhookUrl string `mapstructure:"webhook_url"`
}

type WalletConfig struct {
	Mnemonic     string `mapstructure:"mnemonic"`
	KeystorePath string `mapstructure:"keystore_path"` // 本地 Keystore 文件路径
	Password     string `mapstructure:"password"`      // Keystore 密码 (通常通过环境变量 WALLET_PASSWORD 传入)
	// SecretKeyHex 32字节 Hex，用于落库前加密钱包私钥
	SecretKeyHex string `mapstructure:"secret_key_hex"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			// Config file was found but another error was produced
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8001")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "payment_user")
	viper.SetDefault("db.password", "payment_password")
	viper.SetDefault("db.name", "payment_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.token_decimals", 6)

	viper.SetDefault("deposit.poll_interval_sec", 15)
	viper.SetDefault("deposit.expiry_min", 20)

	viper.SetDefault("wallet.keystore_path", "wallet.json")
}
