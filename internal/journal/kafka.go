package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// KafkaJournal Kafka流水输出器
type KafkaJournal struct {
	logger   *logrus.Logger
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaJournal 创建Kafka流水输出器
func NewKafkaJournal(brokers []string, topic string, logger *logrus.Logger) (*KafkaJournal, error) {
	logger.Infof("初始化Kafka流水输出器，brokers: %v, topic: %s", brokers, topic)

	// 配置Kafka生产者
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	return &KafkaJournal{
		logger:   logger,
		topic:    topic,
		producer: producer,
	}, nil
}

// WriteRecord 发送流水记录到Kafka
func (k *KafkaJournal) WriteRecord(record *Record) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化流水记录失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(record.Contract),
		Value: sarama.StringEncoder(jsonData),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("Kafka消息发送失败: %w", err)
	}

	k.logger.Debugf("流水已写入Kafka: %s (partition=%d, offset=%d)",
		record.TransactionID, partition, offset)
	return nil
}

// Close 关闭生产者
func (k *KafkaJournal) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
