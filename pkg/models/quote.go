package models

import (
	"math/big"
	"time"
)

// SwapQuote 限时有效的兑换报价
// 约束：创建时ExpiresAt严格在未来；Route长度至少为2；
// OutputAmount与Fee由InputAmount和路径推导，有效报价的OutputAmount > 0
type SwapQuote struct {
	InputAsset        string    `json:"input_asset"`        // 输入资产标识
	OutputAsset       string    `json:"output_asset"`       // 输出资产标识
	InputAmount       *big.Int  `json:"input_amount"`       // 输入数量
	OutputAmount      *big.Int  `json:"output_amount"`      // 输出数量
	PriceImpact       float64   `json:"price_impact"`       // 价格冲击（非负比例）
	Fee               *big.Int  `json:"fee"`                // 手续费
	Route             []string  `json:"route"`              // 兑换路径（资产标识序列）
	SlippageTolerance float64   `json:"slippage_tolerance"` // 滑点容忍度
	ExpiresAt         time.Time `json:"expires_at"`         // 过期时间
	CreatedAt         time.Time `json:"created_at"`         // 创建时间
}

// Expired 以传入的墙钟时间判断报价是否已过期
func (q *SwapQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// MinOutputAmount 按滑点容忍度计算的最小可接受输出
func (q *SwapQuote) MinOutputAmount(maxSlippage float64) *big.Int {
	if q.OutputAmount == nil {
		return big.NewInt(0)
	}
	if maxSlippage <= 0 {
		maxSlippage = q.SlippageTolerance
	}
	// min = output * (1 - slippage)，用整数运算避免精度漂移
	factor := int64((1 - maxSlippage) * 10000)
	if factor < 0 {
		factor = 0
	}
	min := new(big.Int).Mul(q.OutputAmount, big.NewInt(factor))
	return min.Div(min, big.NewInt(10000))
}

// LiquidityPool 流动性池描述
type LiquidityPool struct {
	Contract    string   `json:"contract"`     // 池合约地址
	AssetA      string   `json:"asset_a"`      // 资产A标识
	AssetB      string   `json:"asset_b"`      // 资产B标识
	ReserveA    *big.Int `json:"reserve_a"`    // 资产A储备量
	ReserveB    *big.Int `json:"reserve_b"`    // 资产B储备量
	FeeBps      int      `json:"fee_bps"`      // 手续费（基点）
	TotalShares *big.Int `json:"total_shares"` // 流动性份额总量
}

// Matches 判断池是否覆盖指定资产对（方向无关）
func (p *LiquidityPool) Matches(assetX, assetY string) bool {
	return (p.AssetA == assetX && p.AssetB == assetY) ||
		(p.AssetA == assetY && p.AssetB == assetX)
}
