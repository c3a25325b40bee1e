package config

import (
	"fmt"
	"os"

	"sorotrade/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go/network"
)

// Config 主配置
type Config struct {
	Runtime *RuntimeConfig     `mapstructure:"runtime"`
	Engine  *EngineConfig      `mapstructure:"engine"`
	MEV     *MEVConfig         `mapstructure:"mev"`
	Journal *JournalConfig     `mapstructure:"journal"`
	API     *APIConfig         `mapstructure:"api"`
	Logging *logging.LogConfig `mapstructure:"logging"`
}

// RuntimeConfig 合约运行时端点配置
type RuntimeConfig struct {
	Endpoint          string `mapstructure:"endpoint"`           // Soroban RPC端点
	NetworkPassphrase string `mapstructure:"network_passphrase"` // 网络口令
	Timeout           string `mapstructure:"timeout"`            // 单次远程调用期限
}

// EngineConfig 引擎配置
type EngineConfig struct {
	QuoteTTL        string  `mapstructure:"quote_ttl"`        // 报价有效期
	GasCacheSize    int     `mapstructure:"gas_cache_size"`   // gas估算缓存容量
	DefaultSlippage float64 `mapstructure:"default_slippage"` // 默认滑点容忍度
	SnapshotPath    string  `mapstructure:"snapshot_path"`    // 注册表快照文件路径
}

// MEVConfig MEV保护配置
type MEVConfig struct {
	Enabled         bool   `mapstructure:"enabled"`          // 是否启用保护通道
	Endpoint        string `mapstructure:"endpoint"`         // 私有提交通道端点
	FallbackEnabled bool   `mapstructure:"fallback_enabled"` // 保护通道失败时回退标准通道
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// JournalConfig 执行流水配置
type JournalConfig struct {
	Format    string       `mapstructure:"format"`    // 输出格式 (file, kafka, none)
	Directory string       `mapstructure:"directory"` // 文件输出目录
	Kafka     *KafkaConfig `mapstructure:"kafka"`
}

// APIConfig 管理API配置
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoadConfig 加载配置（自动检测配置源）
// 优先从SOROTRADE_DB_DSN指向的数据库读取，否则回退到YAML文件
func LoadConfig(configPath string) (*Config, error) {
	dbDSN := os.Getenv("SOROTRADE_DB_DSN")
	if dbDSN != "" {
		logger := logrus.New()
		dbConfig, err := NewDatabaseConfig(dbDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("连接配置数据库失败: %w", err)
		}
		defer dbConfig.Close()

		config, err := dbConfig.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("从数据库加载配置失败: %w", err)
		}

		logger.Info("已从数据库加载配置")
		return config, nil
	}

	return LoadConfigFromFile(configPath)
}

// LoadConfigFromFile 从YAML文件加载配置
func LoadConfigFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.SetEnvPrefix("SOROTRADE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			// 配置文件缺失时使用默认配置
			return GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDefaultConfig 默认配置
func GetDefaultConfig() *Config {
	endpoint := os.Getenv("SOROBAN_RPC_URL")

	return &Config{
		Runtime: &RuntimeConfig{
			Endpoint:          endpoint,
			NetworkPassphrase: network.TestNetworkPassphrase,
			Timeout:           "30s",
		},
		Engine: &EngineConfig{
			QuoteTTL:        "30s",
			GasCacheSize:    4096,
			DefaultSlippage: 0.005,
			SnapshotPath:    "./data/registry.db",
		},
		MEV: &MEVConfig{
			Enabled:         false,
			Endpoint:        "",
			FallbackEnabled: true,
		},
		Journal: &JournalConfig{
			Format:    "file",
			Directory: "./outputs",
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topic:   "sorotrade.executions",
			},
		},
		API: &APIConfig{
			Enabled: true,
			Port:    8080,
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate 校验配置的基本一致性
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为nil")
	}
	if config.Engine != nil && config.Engine.DefaultSlippage < 0 {
		return fmt.Errorf("默认滑点不能为负: %f", config.Engine.DefaultSlippage)
	}
	if config.MEV != nil && config.MEV.Enabled && config.MEV.Endpoint == "" {
		return fmt.Errorf("启用MEV保护时必须配置保护通道端点")
	}
	return nil
}
