package gas

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize 估算缓存默认容量
const DefaultCacheSize = 4096

// baseCosts 各函数的基础资源消耗表（资源单位 = CPU指令数量级）
// 未知函数使用defaultBaseCost
var baseCosts = map[string]uint64{
	"swap":             2_500_000,
	"add_liquidity":    3_000_000,
	"remove_liquidity": 2_800_000,
	"transfer":         800_000,
	"quote":            600_000,
	"balance":          300_000,
}

const defaultBaseCost = 1_200_000

// Estimator 资源成本模型
// 纯计算，无任何I/O；估算仅供参考，执行记账始终以模拟结果为准。
// 相同输入的估算结果确定且命中缓存；参数复杂度严格增加时估算值
// 单调不减
type Estimator struct {
	cache  *lru.Cache
	logger *logrus.Logger
}

// NewEstimator 创建资源成本估算器
func NewEstimator(cacheSize int, logger *logrus.Logger) (*Estimator, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("创建估算缓存失败: %w", err)
	}

	return &Estimator{
		cache:  cache,
		logger: logger,
	}, nil
}

// Estimate 估算一次合约调用的资源消耗
// 结果按(合约, 函数, 参数复杂度指纹)缓存，相同调用直接返回缓存值
func (e *Estimator) Estimate(contract, function string, params map[string]interface{}) uint64 {
	fp := fingerprint(params)
	key := fmt.Sprintf("%s|%s|%x", contract, function, fp)

	if cached, ok := e.cache.Get(key); ok {
		return cached.(uint64)
	}

	base, ok := baseCosts[function]
	if !ok {
		base = defaultBaseCost
	}

	// 复杂度附加费：每复杂度点增加基础值的千分之一，
	// 保证参数规模明显增大时估算至少上浮10%
	complexity := complexityScore(params)
	estimate := base + base*complexity/1000

	e.cache.Add(key, estimate)
	e.logger.Debugf("gas估算: %s.%s 复杂度=%d 估算值=%d", contract, function, complexity, estimate)
	return estimate
}

// CacheLen 当前缓存条目数
func (e *Estimator) CacheLen() int {
	return e.cache.Len()
}

// Purge 清空估算缓存
func (e *Estimator) Purge() {
	e.cache.Purge()
}

// fingerprint 参数复杂度指纹
// encoding/json对map键做排序，序列化结果对相同参数集稳定
func fingerprint(params map[string]interface{}) uint64 {
	data, err := json.Marshal(params)
	if err != nil {
		// 无法序列化的参数退化为按键数量区分
		data = []byte(fmt.Sprintf("unserializable:%d", len(params)))
	}

	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// complexityScore 参数复杂度评分
// 由键数量、嵌套深度和序列化总长度共同决定，均为单调因素
func complexityScore(params map[string]interface{}) uint64 {
	if len(params) == 0 {
		return 0
	}

	data, err := json.Marshal(params)
	serialLen := uint64(0)
	if err == nil {
		serialLen = uint64(len(data))
	}

	return uint64(len(params))*60 + maxDepth(params)*50 + serialLen/4
}

// maxDepth 参数集合的最大嵌套深度
func maxDepth(value interface{}) uint64 {
	switch v := value.(type) {
	case map[string]interface{}:
		deepest := uint64(0)
		for _, child := range v {
			if d := maxDepth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case []interface{}:
		deepest := uint64(0)
		for _, child := range v {
			if d := maxDepth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	default:
		return 0
	}
}
