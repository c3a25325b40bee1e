package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogEntry 内存中保留的单条日志
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// LogManager 固定容量的最近日志环
type LogManager struct {
	entries []LogEntry
	max     int
	mu      sync.RWMutex
}

// NewLogManager 创建日志管理器
func NewLogManager(max int) *LogManager {
	if max <= 0 {
		max = 1000
	}
	return &LogManager{
		entries: make([]LogEntry, 0, max),
		max:     max,
	}
}

// Add 追加日志，超出容量时淘汰最旧的
func (lm *LogManager) Add(entry LogEntry) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.entries = append(lm.entries, entry)
	if len(lm.entries) > lm.max {
		lm.entries = lm.entries[1:]
	}
}

// Recent 返回最近n条日志
func (lm *LogManager) Recent(n int) []LogEntry {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	if n <= 0 || n > len(lm.entries) {
		n = len(lm.entries)
	}
	out := make([]LogEntry, n)
	copy(out, lm.entries[len(lm.entries)-n:])
	return out
}

// LogHook 把logrus日志送入LogManager的钩子
type LogHook struct {
	manager *LogManager
}

// NewLogHook 创建日志钩子
func NewLogHook(manager *LogManager) *LogHook {
	return &LogHook{manager: manager}
}

// Levels 实现logrus.Hook接口
func (h *LogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 实现logrus.Hook接口
func (h *LogHook) Fire(entry *logrus.Entry) error {
	h.manager.Add(LogEntry{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
	})
	return nil
}
