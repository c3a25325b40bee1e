package amm

import (
	"context"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorotrade/internal/errors"
	"sorotrade/internal/executor"
	"sorotrade/internal/registry"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestFacade 构建带一个USDC/XLM直达池的测试门面
func newTestFacade(t *testing.T, stub *runtime.StubClient) *Facade {
	logger := testLogger()
	reg := registry.NewRegistry(stub, logger)
	gw := simulation.NewGateway(stub, logger)
	coord := executor.NewCoordinator(stub, gw, logger)

	_, err := reg.Register("CAMM0001", "USDC/XLM池", models.ContractTypeAMM, map[string][]string{
		"swap":  {"input_asset", "output_asset", "amount", "min_amount_out"},
		"quote": {"input_asset", "output_asset", "amount"},
	})
	require.NoError(t, err)

	stub.SetContractData("CAMM0001", "PoolInfo", map[string]interface{}{
		"asset_a":      "USDC",
		"asset_b":      "XLM",
		"reserve_a":    "5000000",
		"reserve_b":    "40000000",
		"total_shares": "14000000",
		"fee_bps":      float64(30),
	}, 900)

	stub.SetSimulateResponse("CAMM0001", "quote", &runtime.SimulateResponse{
		Success:         true,
		CPUInstructions: 600_000,
		MemoryBytes:     32_000,
		Result: map[string]interface{}{
			"amount_out":   "7960",
			"fee":          "3",
			"price_impact": 0.0002,
		},
	})

	return NewFacade(coord, gw, reg, stub, DefaultQuoteTTL, DefaultSlippage, logger)
}

func TestGetSwapQuote(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	before := time.Now()
	quote, err := facade.GetSwapQuote(context.Background(), "USDC", "XLM", big.NewInt(1000), 0)
	require.NoError(t, err)
	require.NotNil(t, quote)

	// 有效报价的形状不变式
	assert.Equal(t, "USDC", quote.InputAsset)
	assert.Equal(t, "XLM", quote.OutputAsset)
	assert.Equal(t, big.NewInt(1000), quote.InputAmount)
	assert.Equal(t, big.NewInt(7960), quote.OutputAmount)
	assert.Equal(t, big.NewInt(3), quote.Fee)
	assert.InDelta(t, 0.0002, quote.PriceImpact, 1e-9)
	assert.GreaterOrEqual(t, len(quote.Route), 2)
	assert.Equal(t, []string{"USDC", "XLM"}, quote.Route)
	assert.True(t, quote.ExpiresAt.After(before))
	assert.Equal(t, DefaultSlippage, quote.SlippageTolerance) // 0滑点使用默认值
}

func TestGetSwapQuote_CacheHit(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	first, err := facade.GetSwapQuote(context.Background(), "USDC", "XLM", big.NewInt(1000), 0.01)
	require.NoError(t, err)

	// 第二次查询命中缓存，返回同一报价对象
	second, err := facade.GetSwapQuote(context.Background(), "USDC", "XLM", big.NewInt(1000), 0.01)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, facade.Quotes().Count())

	// 不同数量产生独立报价
	third, err := facade.GetSwapQuote(context.Background(), "USDC", "XLM", big.NewInt(2000), 0.01)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, facade.Quotes().Count())
}

func TestGetSwapQuote_InvalidInput(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)
	ctx := context.Background()

	// 相同资产
	_, err := facade.GetSwapQuote(ctx, "USDC", "USDC", big.NewInt(1000), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))

	// 空资产
	_, err = facade.GetSwapQuote(ctx, "", "XLM", big.NewInt(1000), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))

	// 非正数量
	_, err = facade.GetSwapQuote(ctx, "USDC", "XLM", big.NewInt(0), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))

	_, err = facade.GetSwapQuote(ctx, "USDC", "XLM", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))
}

func TestGetSwapQuote_NoPool(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	// 两侧都不经过已知池
	_, err := facade.GetSwapQuote(context.Background(), "BTC", "ETH", big.NewInt(1000), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuoteUnavailable))
}

func TestGetSwapQuote_IntermediateRoute(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	// USDC -> BTC无直达池，经XLM中转
	quote, err := facade.GetSwapQuote(context.Background(), "USDC", "BTC", big.NewInt(1000), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"USDC", "XLM", "BTC"}, quote.Route)
}

func TestGetSwapQuote_ZeroOutput(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	stub.SetSimulateResponse("CAMM0001", "quote", &runtime.SimulateResponse{
		Success: true,
		Result:  map[string]interface{}{"amount_out": "0"},
	})

	_, err := facade.GetSwapQuote(context.Background(), "USDC", "XLM", big.NewInt(1), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuoteUnavailable))
}

func TestExecuteSwap(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)
	ctx := context.Background()

	quote, err := facade.GetSwapQuote(ctx, "USDC", "XLM", big.NewInt(1000), 0.01)
	require.NoError(t, err)
	require.Equal(t, 1, facade.Quotes().Count())

	id, op, err := facade.ExecuteSwap(ctx, quote, "GSOURCE", 0.01)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "swap-"))

	// 返回的操作标识实际使用的池
	require.NotNil(t, op)
	assert.Equal(t, "CAMM0001", op.Contract)
	assert.Equal(t, models.OperationTypeSwap, op.Type)

	// 成功提交后报价被消费
	assert.Equal(t, 0, facade.Quotes().Count())

	submitted := stub.Submitted()
	require.Len(t, submitted, 1)
	call := submitted[0].Calls[0]
	assert.Equal(t, "CAMM0001", call.Contract)
	assert.Equal(t, "swap", call.Function)
	assert.Equal(t, "1000", call.Params["amount"])

	// 滑点保护下限：7960 * (1 - 0.01) = 7880（向下取整）
	assert.Equal(t, "7880", call.Params["min_amount_out"])
}

func TestExecuteSwap_Expired(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	quote := &models.SwapQuote{
		InputAsset:        "USDC",
		OutputAsset:       "XLM",
		InputAmount:       big.NewInt(1000),
		OutputAmount:      big.NewInt(7960),
		Fee:               big.NewInt(3),
		Route:             []string{"USDC", "XLM"},
		SlippageTolerance: 0.01,
		CreatedAt:         time.Now().Add(-time.Minute),
		ExpiresAt:         time.Now().Add(-30 * time.Second),
	}

	_, _, err := facade.ExecuteSwap(context.Background(), quote, "GSOURCE", 0.01)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeQuoteExpired))

	// 过期报价绝不提交
	assert.Empty(t, stub.Submitted())
}

func TestExecuteSwap_NilQuote(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	_, _, err := facade.ExecuteSwap(context.Background(), nil, "GSOURCE", 0.01)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))
}

func TestAddLiquidity(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	id, err := facade.AddLiquidity(context.Background(), "CAMM0001",
		big.NewInt(10000), big.NewInt(80000), "GSOURCE", big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "ind-"))

	submitted := stub.Submitted()
	require.Len(t, submitted, 1)
	call := submitted[0].Calls[0]
	assert.Equal(t, "add_liquidity", call.Function)
	assert.Equal(t, "10000", call.Params["amount_a"])
	assert.Equal(t, "80000", call.Params["amount_b"])
	assert.Equal(t, "100", call.Params["min_shares"])
}

func TestAddLiquidity_NilMinShares(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	// minShares为nil时按0转发
	_, err := facade.AddLiquidity(context.Background(), "CAMM0001",
		big.NewInt(10000), big.NewInt(80000), "GSOURCE", nil)
	require.NoError(t, err)

	call := stub.Submitted()[0].Calls[0]
	assert.Equal(t, "0", call.Params["min_shares"])
}

func TestRemoveLiquidity(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	id, err := facade.RemoveLiquidity(context.Background(), "CAMM0001",
		big.NewInt(500), "GSOURCE", big.NewInt(90), big.NewInt(700))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "ind-"))

	call := stub.Submitted()[0].Calls[0]
	assert.Equal(t, "remove_liquidity", call.Function)
	assert.Equal(t, "500", call.Params["shares"])
	assert.Equal(t, "90", call.Params["min_token_a"])
	assert.Equal(t, "700", call.Params["min_token_b"])
}

func TestRemoveLiquidity_InvalidShares(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	_, err := facade.RemoveLiquidity(context.Background(), "CAMM0001",
		big.NewInt(0), "GSOURCE", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))
}

func TestGetLiquidityPools(t *testing.T) {
	stub := runtime.NewStubClient()
	facade := newTestFacade(t, stub)

	pools, err := facade.GetLiquidityPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)

	pool := pools[0]
	assert.Equal(t, "CAMM0001", pool.Contract)
	assert.Equal(t, "USDC", pool.AssetA)
	assert.Equal(t, "XLM", pool.AssetB)
	assert.Equal(t, big.NewInt(5000000), pool.ReserveA)
	assert.Equal(t, big.NewInt(40000000), pool.ReserveB)
	assert.Equal(t, 30, pool.FeeBps)
	assert.True(t, pool.Matches("XLM", "USDC")) // 方向无关
}

func TestGetLiquidityPools_Empty(t *testing.T) {
	stub := runtime.NewStubClient()
	logger := testLogger()
	reg := registry.NewRegistry(stub, logger)
	gw := simulation.NewGateway(stub, logger)
	coord := executor.NewCoordinator(stub, gw, logger)
	facade := NewFacade(coord, gw, reg, stub, 0, 0, logger)

	// 没有已知池：空列表而不是错误
	pools, err := facade.GetLiquidityPools(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, pools)
	assert.Empty(t, pools)
}

func TestQuoteCache_Expiry(t *testing.T) {
	qc := NewQuoteCache(time.Minute)

	quote := &models.SwapQuote{
		InputAsset:        "USDC",
		OutputAsset:       "XLM",
		InputAmount:       big.NewInt(1000),
		OutputAmount:      big.NewInt(7960),
		SlippageTolerance: 0.01,
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(50 * time.Millisecond),
	}
	qc.Put(quote)

	assert.NotNil(t, qc.Get("USDC", "XLM", big.NewInt(1000), 0.01))

	// 过期后按不存在处理
	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, qc.Get("USDC", "XLM", big.NewInt(1000), 0.01))
}

func TestQuoteCache_AlreadyExpiredNotStored(t *testing.T) {
	qc := NewQuoteCache(time.Minute)

	quote := &models.SwapQuote{
		InputAsset:        "USDC",
		OutputAsset:       "XLM",
		InputAmount:       big.NewInt(1000),
		SlippageTolerance: 0.01,
		ExpiresAt:         time.Now().Add(-time.Second),
	}
	qc.Put(quote)

	assert.Equal(t, 0, qc.Count())
}

func TestParsePoolInfo_Invalid(t *testing.T) {
	// 非映射
	assert.Nil(t, parsePoolInfo("CAMM0001", "not a map"))

	// 缺少资产标识
	assert.Nil(t, parsePoolInfo("CAMM0001", map[string]interface{}{"reserve_a": "100"}))
}

func TestToBigInt(t *testing.T) {
	assert.Equal(t, big.NewInt(1000), toBigInt("1000"))
	assert.Equal(t, big.NewInt(42), toBigInt(float64(42)))
	assert.Equal(t, big.NewInt(7), toBigInt(int64(7)))
	assert.Equal(t, big.NewInt(3), toBigInt(3))
	assert.Nil(t, toBigInt("not a number"))
	assert.Nil(t, toBigInt(nil))
	assert.Nil(t, toBigInt(true))
}
