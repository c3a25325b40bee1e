package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sorotrade/pkg/models"

	bolt "go.etcd.io/bbolt"
)

const (
	// 存储桶名称
	contractsBucket = "contracts"
	metaBucket      = "meta"

	// 元数据键
	savedAtKey = "saved_at"
)

// SaveSnapshot 将注册表条目持久化到BoltDB文件
// 交易系统重启后可据此快速恢复注册状态
func (r *Registry) SaveSnapshot(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建快照目录失败: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("打开快照数据库失败: %w", err)
	}
	defer db.Close()

	contracts := r.All()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(contractsBucket))
		if err != nil {
			return err
		}

		for _, info := range contracts {
			data, err := json.Marshal(info)
			if err != nil {
				return fmt.Errorf("序列化合约条目失败: %w", err)
			}
			if err := bucket.Put([]byte(info.Address), data); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		return meta.Put([]byte(savedAtKey), []byte(time.Now().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}

	r.logger.Infof("注册表快照已保存: %s (%d个合约)", dbPath, len(contracts))
	return nil
}

// LoadSnapshot 从BoltDB文件恢复注册表条目
// 恢复的条目一律视为未验证，链上状态必须重新确认
func (r *Registry) LoadSnapshot(dbPath string) (int, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return 0, nil
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("打开快照数据库失败: %w", err)
	}
	defer db.Close()

	loaded := 0
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(contractsBucket))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var info models.ContractInfo
			if err := json.Unmarshal(v, &info); err != nil {
				r.logger.Warnf("跳过损坏的快照条目 %s: %v", string(k), err)
				return nil
			}

			// 快照中的验证状态不可信
			info.Verified = false
			info.DeployedAtLedger = 0

			r.mu.Lock()
			r.contracts[info.Address] = &info
			r.mu.Unlock()
			loaded++
			return nil
		})
	})
	if err != nil {
		return loaded, fmt.Errorf("读取快照失败: %w", err)
	}

	r.logger.Infof("已从快照恢复%d个合约条目: %s", loaded, dbPath)
	return loaded, nil
}
