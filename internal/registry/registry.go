package registry

import (
	"context"
	"regexp"
	"sync"
	"time"

	"sorotrade/internal/errors"
	"sorotrade/internal/runtime"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/strkey"
)

// 链上验证查询使用的存储键，Soroban合约实例数据挂在该键下
const contractInstanceKey = "ContractInstance"

// 宽松地址格式：C开头的大写字母数字串
// 完整strkey校验失败但满足该格式的地址放行（测试网与本地环境
// 常用简写地址），只记debug日志
var looseAddressPattern = regexp.MustCompile(`^C[A-Z0-9]{4,55}$`)

// Registry 已知合约的内存目录
// 注册表归引擎实例所有；并发读写安全；正常运行期间条目不删除。
// 表内存储的ContractInfo一经写入不再原地修改，状态变更以新副本
// 整体替换旧条目，已发出的指针因此是不可变快照
type Registry struct {
	contracts map[string]*models.ContractInfo
	client    runtime.Client
	logger    *logrus.Logger
	mu        sync.RWMutex
}

// NewRegistry 创建合约注册表
func NewRegistry(client runtime.Client, logger *logrus.Logger) *Registry {
	return &Registry{
		contracts: make(map[string]*models.ContractInfo),
		client:    client,
		logger:    logger,
	}
}

// validAddress 校验合约地址格式
func validAddress(address string) bool {
	if _, err := strkey.Decode(strkey.VersionByteContract, address); err == nil {
		return true
	}
	return looseAddressPattern.MatchString(address)
}

// Register 注册合约
// 地址已存在时覆盖旧条目并记录警告（交易系统重启后会重新注册）；
// 新条目始终为未验证状态
func (r *Registry) Register(address, name string, contractType models.ContractType, iface map[string][]string) (*models.ContractInfo, error) {
	if !validAddress(address) {
		return nil, errors.NewInvalidAddress(address)
	}

	if iface == nil {
		iface = make(map[string][]string)
	}

	info := &models.ContractInfo{
		Address:      address,
		Name:         name,
		Type:         contractType,
		Interface:    iface,
		Verified:     false,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	if old, exists := r.contracts[address]; exists {
		r.logger.Warnf("合约地址重复注册，覆盖旧条目: %s (原名称: %s)", address, old.Name)
	}
	r.contracts[address] = info
	r.mu.Unlock()

	r.logger.Infof("已注册合约: %s (%s, 类型: %s)", name, address, contractType)
	return info, nil
}

// Verify 通过链上数据查询验证合约
// 未找到数据时返回false且条目保持未验证；找到数据时置Verified并
// 记录ledger序号。该操作幂等，重复验证会刷新DeployedAtLedger
func (r *Registry) Verify(ctx context.Context, address string) (bool, error) {
	r.mu.RLock()
	_, exists := r.contracts[address]
	r.mu.RUnlock()
	if !exists {
		return false, errors.NewNotFound(address)
	}

	entry, err := r.client.GetContractData(ctx, address, contractInstanceKey)
	if err != nil {
		return false, errors.WrapTransport(err).WithContract(address)
	}

	if entry == nil {
		r.logger.Warnf("合约验证失败，链上无数据: %s", address)
		return false, nil
	}

	// 不原地修改已发出的条目，用新副本整体替换
	r.mu.Lock()
	if info, ok := r.contracts[address]; ok {
		updated := *info
		updated.Verified = true
		updated.DeployedAtLedger = entry.LastModifiedLedger
		r.contracts[address] = &updated
	}
	r.mu.Unlock()

	r.logger.Infof("合约验证成功: %s (ledger %d)", address, entry.LastModifiedLedger)
	return true, nil
}

// Get 查询已注册合约
func (r *Registry) Get(address string) (*models.ContractInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.contracts[address]
	if !exists {
		return nil, errors.NewNotFound(address)
	}
	return info, nil
}

// All 返回所有已注册合约的快照列表
func (r *Registry) All() []*models.ContractInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ContractInfo, 0, len(r.contracts))
	for _, info := range r.contracts {
		out = append(out, info)
	}
	return out
}

// ByType 按合约类型筛选
func (r *Registry) ByType(t models.ContractType) []*models.ContractInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ContractInfo
	for _, info := range r.contracts {
		if info.Type == t {
			out = append(out, info)
		}
	}
	return out
}

// Count 已注册合约数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contracts)
}

// VerifiedCount 已验证合约数
func (r *Registry) VerifiedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, info := range r.contracts {
		if info.Verified {
			count++
		}
	}
	return count
}
