package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileJournal 异步文件流水输出器
// 记录经缓冲通道交给后台协程追加写入，Close时冲刷剩余记录
type FileJournal struct {
	logger  *logrus.Logger
	file    *os.File
	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewFileJournal 创建文件流水输出器
func NewFileJournal(dir string, logger *logrus.Logger) (*FileJournal, error) {
	if dir == "" {
		dir = "./outputs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建流水目录失败: %w", err)
	}

	path := filepath.Join(dir, "executions.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开流水文件失败: %w", err)
	}

	j := &FileJournal{
		logger:  logger,
		file:    file,
		records: make(chan *Record, 1024),
		done:    make(chan struct{}),
	}

	j.wg.Add(1)
	go j.writeLoop()

	logger.Infof("文件流水输出器已启动: %s", path)
	return j, nil
}

// writeLoop 后台写入循环
func (j *FileJournal) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case record := <-j.records:
			j.writeOne(record)
		case <-j.done:
			// 冲刷缓冲中剩余的记录
			for {
				select {
				case record := <-j.records:
					j.writeOne(record)
				default:
					return
				}
			}
		}
	}
}

// writeOne 追加写入单条记录
func (j *FileJournal) writeOne(record *Record) {
	data, err := json.Marshal(record)
	if err != nil {
		j.logger.Errorf("序列化流水记录失败: %v", err)
		return
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		j.logger.Errorf("写入流水文件失败: %v", err)
	}
}

// WriteRecord 提交记录到写入队列
// 队列满时丢弃并记警告，流水不能阻塞交易路径
func (j *FileJournal) WriteRecord(record *Record) error {
	select {
	case j.records <- record:
		return nil
	default:
		j.logger.Warnf("流水队列已满，丢弃记录: %s", record.TransactionID)
		return nil
	}
}

// Close 停止后台协程并关闭文件
func (j *FileJournal) Close() error {
	j.once.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
	return j.file.Close()
}
