package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DatabaseConfig 数据库配置管理器
// 交易系统通常把连接器配置集中存在Postgres里，多个实例共享一份
type DatabaseConfig struct {
	DB     *sql.DB
	logger *logrus.Logger
}

// NewDatabaseConfig 创建数据库配置管理器
func NewDatabaseConfig(dsn string, logger *logrus.Logger) (*DatabaseConfig, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	return &DatabaseConfig{
		DB:     db,
		logger: logger,
	}, nil
}

// LoadConfig 从数据库加载完整配置
// engine_config表结构: (config_key TEXT, config_value TEXT, is_active BOOL)
func (dc *DatabaseConfig) LoadConfig() (*Config, error) {
	config := GetDefaultConfig()

	query := `SELECT config_key, config_value FROM engine_config WHERE is_active = true`
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("查询引擎配置失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		dc.applyOption(config, key, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyOption 把单条配置项写入配置结构
func (dc *DatabaseConfig) applyOption(config *Config, key, value string) {
	switch key {
	case "runtime.endpoint":
		config.Runtime.Endpoint = value
	case "runtime.network_passphrase":
		config.Runtime.NetworkPassphrase = value
	case "runtime.timeout":
		config.Runtime.Timeout = value
	case "engine.quote_ttl":
		config.Engine.QuoteTTL = value
	case "engine.gas_cache_size":
		if n, err := strconv.Atoi(value); err == nil {
			config.Engine.GasCacheSize = n
		}
	case "engine.default_slippage":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			config.Engine.DefaultSlippage = f
		}
	case "engine.snapshot_path":
		config.Engine.SnapshotPath = value
	case "mev.enabled":
		config.MEV.Enabled = value == "true"
	case "mev.endpoint":
		config.MEV.Endpoint = value
	case "mev.fallback_enabled":
		config.MEV.FallbackEnabled = value == "true"
	case "journal.format":
		config.Journal.Format = value
	case "journal.directory":
		config.Journal.Directory = value
	case "journal.kafka.brokers":
		config.Journal.Kafka.Brokers = strings.Split(value, ",")
	case "journal.kafka.topic":
		config.Journal.Kafka.Topic = value
	case "api.port":
		if n, err := strconv.Atoi(value); err == nil {
			config.API.Port = n
		}
	case "logging.level":
		config.Logging.Level = value
	default:
		dc.logger.Debugf("忽略未知配置项: %s", key)
	}
}

// Close 关闭数据库连接
func (dc *DatabaseConfig) Close() error {
	if dc.DB != nil {
		return dc.DB.Close()
	}
	return nil
}
