package amm

import (
	"fmt"
	"math/big"
	"time"

	"sorotrade/pkg/models"

	gocache "github.com/patrickmn/go-cache"
)

// QuoteCache 限时报价缓存
// 键为(输入资产, 输出资产, 输入数量, 滑点容忍度)；条目随报价
// 过期自动清除；并发访问安全
type QuoteCache struct {
	cache *gocache.Cache
}

// NewQuoteCache 创建报价缓存
func NewQuoteCache(defaultTTL time.Duration) *QuoteCache {
	return &QuoteCache{
		cache: gocache.New(defaultTTL, defaultTTL/2),
	}
}

// quoteKey 缓存键
func quoteKey(inputAsset, outputAsset string, amount *big.Int, slippage float64) string {
	return fmt.Sprintf("%s->%s:%s:%.6f", inputAsset, outputAsset, amount.String(), slippage)
}

// Get 查询缓存报价，过期或不存在返回nil
func (qc *QuoteCache) Get(inputAsset, outputAsset string, amount *big.Int, slippage float64) *models.SwapQuote {
	key := quoteKey(inputAsset, outputAsset, amount, slippage)
	if v, ok := qc.cache.Get(key); ok {
		quote := v.(*models.SwapQuote)
		if !quote.Expired(time.Now()) {
			return quote
		}
		qc.cache.Delete(key)
	}
	return nil
}

// Put 缓存报价，存活期与报价有效期对齐
func (qc *QuoteCache) Put(quote *models.SwapQuote) {
	key := quoteKey(quote.InputAsset, quote.OutputAsset, quote.InputAmount, quote.SlippageTolerance)
	ttl := time.Until(quote.ExpiresAt)
	if ttl <= 0 {
		return
	}
	qc.cache.Set(key, quote, ttl)
}

// Consume 移除已消费的报价（成功执行的兑换恰好消费一次）
func (qc *QuoteCache) Consume(quote *models.SwapQuote) {
	qc.cache.Delete(quoteKey(quote.InputAsset, quote.OutputAsset, quote.InputAmount, quote.SlippageTolerance))
}

// Count 当前缓存条目数
func (qc *QuoteCache) Count() int {
	return qc.cache.ItemCount()
}

// Flush 清空全部报价
func (qc *QuoteCache) Flush() {
	qc.cache.Flush()
}
