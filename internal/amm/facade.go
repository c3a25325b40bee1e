package amm

import (
	"context"
	"math/big"
	"time"

	"sorotrade/internal/errors"
	"sorotrade/internal/executor"
	"sorotrade/internal/registry"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultQuoteTTL 报价有效期
	DefaultQuoteTTL = 30 * time.Second

	// DefaultSlippage 默认滑点容忍度
	DefaultSlippage = 0.005

	// 兑换交易标识前缀约定
	prefixSwap = "swap-"

	// 多跳路径的中间资产
	intermediateAsset = "XLM"

	// 池信息的链上存储键
	poolInfoKey = "PoolInfo"

	// 默认手续费30个基点，池未声明费率时使用
	defaultFeeBps = 30
)

// Facade AMM门面
// 组合模拟网关、执行协调器与报价缓存，提供报价、兑换和流动性操作
type Facade struct {
	coordinator *executor.Coordinator
	simulator   *simulation.Gateway
	registry    *registry.Registry
	client      runtime.Client
	quotes      *QuoteCache
	quoteTTL    time.Duration
	defSlippage float64
	logger      *logrus.Logger
}

// NewFacade 创建AMM门面
func NewFacade(coord *executor.Coordinator, sim *simulation.Gateway, reg *registry.Registry, client runtime.Client, quoteTTL time.Duration, defaultSlippage float64, logger *logrus.Logger) *Facade {
	if quoteTTL <= 0 {
		quoteTTL = DefaultQuoteTTL
	}
	if defaultSlippage <= 0 {
		defaultSlippage = DefaultSlippage
	}

	return &Facade{
		coordinator: coord,
		simulator:   sim,
		registry:    reg,
		client:      client,
		quotes:      NewQuoteCache(quoteTTL),
		quoteTTL:    quoteTTL,
		defSlippage: defaultSlippage,
		logger:      logger,
	}
}

// Quotes 报价缓存（引擎统计和清理用）
func (f *Facade) Quotes() *QuoteCache {
	return f.quotes
}

// GetSwapQuote 获取兑换报价
// 命中未过期的缓存报价时直接返回；否则对目标池做quote模拟并缓存。
// 有效报价满足：OutputAmount > 0、Route长度 ≥ 2、ExpiresAt严格在未来
func (f *Facade) GetSwapQuote(ctx context.Context, inputAsset, outputAsset string, inputAmount *big.Int, slippage float64) (*models.SwapQuote, error) {
	if inputAsset == "" || outputAsset == "" || inputAsset == outputAsset {
		return nil, errors.NewInvalidParameters("输入输出资产必须是两个非空标识")
	}
	if inputAmount == nil || inputAmount.Sign() <= 0 {
		return nil, errors.NewInvalidParameters("输入数量必须为正")
	}
	if slippage <= 0 {
		slippage = f.defSlippage
	}

	if cached := f.quotes.Get(inputAsset, outputAsset, inputAmount, slippage); cached != nil {
		f.logger.Debugf("报价缓存命中: %s -> %s", inputAsset, outputAsset)
		return cached, nil
	}

	pool, route, err := f.resolveRoute(ctx, inputAsset, outputAsset)
	if err != nil {
		return nil, err
	}

	result, err := f.simulator.Simulate(ctx, pool.Contract, "quote", map[string]interface{}{
		"input_asset":  inputAsset,
		"output_asset": outputAsset,
		"amount":       inputAmount.String(),
	}, "")
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, errors.NewQuoteUnavailable(inputAsset, outputAsset, result.Error)
	}

	outputAmount, fee, priceImpact := f.parseQuoteResult(result.ReturnValue, inputAmount, pool)
	if outputAmount == nil || outputAmount.Sign() <= 0 {
		return nil, errors.NewQuoteUnavailable(inputAsset, outputAsset, "运行时返回的输出数量无效")
	}

	now := time.Now()
	quote := &models.SwapQuote{
		InputAsset:        inputAsset,
		OutputAsset:       outputAsset,
		InputAmount:       inputAmount,
		OutputAmount:      outputAmount,
		PriceImpact:       priceImpact,
		Fee:               fee,
		Route:             route,
		SlippageTolerance: slippage,
		CreatedAt:         now,
		ExpiresAt:         now.Add(f.quoteTTL),
	}

	f.quotes.Put(quote)
	f.logger.Infof("已生成兑换报价: %s %s -> %s %s (路径%v, 有效期%s)",
		inputAmount.String(), inputAsset, outputAmount.String(), outputAsset, route, f.quoteTTL)
	return quote, nil
}

// ExecuteSwap 执行兑换
// 过期判断以调用时的墙钟时间为准；成功提交后报价即被消费。
// 连同标识返回实际提交的操作，供上层记流水时标识目标池
func (f *Facade) ExecuteSwap(ctx context.Context, quote *models.SwapQuote, source string, maxSlippage float64) (string, *models.ContractOperation, error) {
	if quote == nil {
		return "", nil, errors.NewInvalidParameters("报价不能为nil")
	}
	if quote.Expired(time.Now()) {
		return "", nil, errors.NewQuoteExpired(quote.InputAsset, quote.OutputAsset)
	}
	if len(quote.Route) < 2 {
		return "", nil, errors.NewInvalidParameters("报价路径长度必须不小于2")
	}

	pool, _, err := f.resolveRoute(ctx, quote.InputAsset, quote.OutputAsset)
	if err != nil {
		return "", nil, err
	}

	op := &models.ContractOperation{
		Type:     models.OperationTypeSwap,
		Contract: pool.Contract,
		Function: "swap",
		Params: map[string]interface{}{
			"input_asset":    quote.InputAsset,
			"output_asset":   quote.OutputAsset,
			"amount":         quote.InputAmount.String(),
			"min_amount_out": quote.MinOutputAmount(maxSlippage).String(),
			"route":          quote.Route,
		},
	}

	hash, err := f.coordinator.Submit(ctx, op, source)
	if err != nil {
		return "", nil, err
	}

	f.quotes.Consume(quote)
	f.logger.Infof("兑换已提交: %s -> %s, 交易=%s", quote.InputAsset, quote.OutputAsset, hash)
	return prefixSwap + hash, op, nil
}

// AddLiquidity 添加流动性
// minShares是调用方给定的滑点保护参数，原样转发给运行时，
// 引擎本地不做校验（执行期校验是运行时的职责）
func (f *Facade) AddLiquidity(ctx context.Context, poolID string, amountA, amountB *big.Int, source string, minShares *big.Int) (string, error) {
	if amountA == nil || amountB == nil {
		return "", errors.NewInvalidParameters("流动性数量不能为nil")
	}
	if minShares == nil {
		minShares = big.NewInt(0)
	}

	op := &models.ContractOperation{
		Type:     models.OperationTypeAddLiquidity,
		Contract: poolID,
		Function: "add_liquidity",
		Params: map[string]interface{}{
			"amount_a":   amountA.String(),
			"amount_b":   amountB.String(),
			"min_shares": minShares.String(),
		},
	}

	return f.coordinator.Invoke(ctx, op, source)
}

// RemoveLiquidity 移除流动性
// 两个最小回收量同样只做参数转发
func (f *Facade) RemoveLiquidity(ctx context.Context, poolID string, shares *big.Int, source string, minTokenA, minTokenB *big.Int) (string, error) {
	if shares == nil || shares.Sign() <= 0 {
		return "", errors.NewInvalidParameters("份额数量必须为正")
	}
	if minTokenA == nil {
		minTokenA = big.NewInt(0)
	}
	if minTokenB == nil {
		minTokenB = big.NewInt(0)
	}

	op := &models.ContractOperation{
		Type:     models.OperationTypeRemoveLiquidity,
		Contract: poolID,
		Function: "remove_liquidity",
		Params: map[string]interface{}{
			"shares":      shares.String(),
			"min_token_a": minTokenA.String(),
			"min_token_b": minTokenB.String(),
		},
	}

	return f.coordinator.Invoke(ctx, op, source)
}

// GetLiquidityPools 发现流动性池
// 遍历注册表中的AMM合约并查询各自的池信息；没有已知池时返回
// 空列表而不报错，单个池的查询失败只跳过
func (f *Facade) GetLiquidityPools(ctx context.Context) ([]*models.LiquidityPool, error) {
	pools := make([]*models.LiquidityPool, 0)

	for _, info := range f.registry.ByType(models.ContractTypeAMM) {
		entry, err := f.client.GetContractData(ctx, info.Address, poolInfoKey)
		if err != nil {
			f.logger.Warnf("查询池信息失败，跳过 %s: %v", info.Address, err)
			continue
		}
		if entry == nil {
			continue
		}

		pool := parsePoolInfo(info.Address, entry.Value)
		if pool != nil {
			pools = append(pools, pool)
		}
	}

	return pools, nil
}

// resolveRoute 为资产对选择池和兑换路径
// 有直达池时路径为[in, out]；否则经XLM中转，路径为[in, XLM, out]
func (f *Facade) resolveRoute(ctx context.Context, inputAsset, outputAsset string) (*models.LiquidityPool, []string, error) {
	pools, err := f.GetLiquidityPools(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 直达池优先
	for _, p := range pools {
		if p.Matches(inputAsset, outputAsset) {
			return p, []string{inputAsset, outputAsset}, nil
		}
	}

	// 经中间资产中转：选择覆盖输入侧的池作为首跳
	for _, p := range pools {
		if p.Matches(inputAsset, intermediateAsset) {
			return p, []string{inputAsset, intermediateAsset, outputAsset}, nil
		}
	}

	return nil, nil, errors.NewQuoteUnavailable(inputAsset, outputAsset, "没有可用的流动性池")
}

// parseQuoteResult 解析运行时返回的报价数据
// 缺失的字段按默认规则补齐：手续费按默认费率从输入数量推导，
// 价格冲击缺省为0
func (f *Facade) parseQuoteResult(value interface{}, inputAmount *big.Int, pool *models.LiquidityPool) (*big.Int, *big.Int, float64) {
	feeBps := pool.FeeBps
	if feeBps <= 0 {
		feeBps = defaultFeeBps
	}
	fallbackFee := new(big.Int).Mul(inputAmount, big.NewInt(int64(feeBps)))
	fallbackFee.Div(fallbackFee, big.NewInt(10000))

	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fallbackFee, 0
	}

	outputAmount := toBigInt(m["amount_out"])
	fee := toBigInt(m["fee"])
	if fee == nil {
		fee = fallbackFee
	}

	priceImpact := 0.0
	if v, ok := m["price_impact"].(float64); ok && v > 0 {
		priceImpact = v
	}

	return outputAmount, fee, priceImpact
}

// toBigInt 宽容地把JSON解码后的数值转成big.Int
func toBigInt(v interface{}) *big.Int {
	switch n := v.(type) {
	case string:
		out, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil
		}
		return out
	case float64:
		return big.NewInt(int64(n))
	case int64:
		return big.NewInt(n)
	case int:
		return big.NewInt(int64(n))
	case *big.Int:
		return n
	default:
		return nil
	}
}

// parsePoolInfo 解析链上池信息
func parsePoolInfo(contract string, value interface{}) *models.LiquidityPool {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}

	pool := &models.LiquidityPool{
		Contract:    contract,
		ReserveA:    big.NewInt(0),
		ReserveB:    big.NewInt(0),
		TotalShares: big.NewInt(0),
		FeeBps:      defaultFeeBps,
	}

	if v, ok := m["asset_a"].(string); ok {
		pool.AssetA = v
	}
	if v, ok := m["asset_b"].(string); ok {
		pool.AssetB = v
	}
	if pool.AssetA == "" || pool.AssetB == "" {
		return nil
	}

	if v := toBigInt(m["reserve_a"]); v != nil {
		pool.ReserveA = v
	}
	if v := toBigInt(m["reserve_b"]); v != nil {
		pool.ReserveB = v
	}
	if v := toBigInt(m["total_shares"]); v != nil {
		pool.TotalShares = v
	}
	if v, ok := m["fee_bps"].(float64); ok && v > 0 {
		pool.FeeBps = int(v)
	}

	return pool
}
