package journal

import (
	"time"

	"sorotrade/internal/config"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
)

// Record 一条执行流水
type Record struct {
	TransactionID string               `json:"transaction_id"` // 带前缀约定的交易标识
	Operation     models.OperationType `json:"operation"`      // 操作类型
	Contract      string               `json:"contract"`       // 目标合约
	Function      string               `json:"function"`       // 调用函数
	Source        string               `json:"source"`         // 发起账户
	Cost          models.ResourceCost  `json:"cost"`           // 模拟给出的资源消耗
	Atomic        bool                 `json:"atomic"`         // 是否原子组提交
	SubmittedAt   time.Time            `json:"submitted_at"`   // 提交时间
}

// Journal 执行流水输出接口
type Journal interface {
	WriteRecord(record *Record) error
	Close() error
}

// NewJournal 按配置创建流水输出器
func NewJournal(cfg *config.JournalConfig, logger *logrus.Logger) (Journal, error) {
	if cfg == nil || cfg.Format == "none" || cfg.Format == "" {
		return &noopJournal{}, nil
	}

	switch cfg.Format {
	case "kafka":
		return NewKafkaJournal(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	default:
		return NewFileJournal(cfg.Directory, logger)
	}
}

// noopJournal 空实现，流水被禁用时使用
type noopJournal struct{}

func (n *noopJournal) WriteRecord(record *Record) error { return nil }
func (n *noopJournal) Close() error                     { return nil }
