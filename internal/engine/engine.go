package engine

import (
	"context"
	"math/big"
	"time"

	"sorotrade/internal/amm"
	"sorotrade/internal/config"
	"sorotrade/internal/errors"
	"sorotrade/internal/executor"
	"sorotrade/internal/gas"
	"sorotrade/internal/journal"
	"sorotrade/internal/mev"
	"sorotrade/internal/registry"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
)

// Engine 合约交互引擎
// 注册表与各缓存都是实例内状态而非全局单例，多个引擎实例互不干扰。
// 账户凭据由调用方随每次状态变更调用传入，引擎不持有、不检查
// 私钥材料
type Engine struct {
	client      runtime.Client
	registry    *registry.Registry
	estimator   *gas.Estimator
	simulator   *simulation.Gateway
	coordinator *executor.Coordinator
	amm         *amm.Facade
	mev         *mev.Submitter
	journal     journal.Journal
	logger      *logrus.Logger
}

// New 创建合约交互引擎
// protectedClient为nil时MEV保护通道复用标准客户端
func New(cfg *config.Config, client runtime.Client, protectedClient runtime.Client, logger *logrus.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	if protectedClient == nil {
		protectedClient = client
	}

	reg := registry.NewRegistry(client, logger)

	estimator, err := gas.NewEstimator(cfg.Engine.GasCacheSize, logger)
	if err != nil {
		return nil, err
	}

	simulator := simulation.NewGateway(client, logger)
	coordinator := executor.NewCoordinator(client, simulator, logger)

	quoteTTL, err := time.ParseDuration(cfg.Engine.QuoteTTL)
	if err != nil || quoteTTL <= 0 {
		quoteTTL = amm.DefaultQuoteTTL
	}

	ammFacade := amm.NewFacade(coordinator, simulator, reg, client,
		quoteTTL, cfg.Engine.DefaultSlippage, logger)

	mevSubmitter := mev.NewSubmitter(coordinator, simulator, protectedClient, mev.Config{
		Enabled:         cfg.MEV.Enabled,
		FallbackEnabled: cfg.MEV.FallbackEnabled,
	}, logger)

	jnl, err := journal.NewJournal(cfg.Journal, logger)
	if err != nil {
		return nil, err
	}

	logger.Infof("合约交互引擎已初始化 (MEV保护: %v, 报价有效期: %s)",
		cfg.MEV.Enabled, quoteTTL)

	return &Engine{
		client:      client,
		registry:    reg,
		estimator:   estimator,
		simulator:   simulator,
		coordinator: coordinator,
		amm:         ammFacade,
		mev:         mevSubmitter,
		journal:     jnl,
		logger:      logger,
	}, nil
}

// Registry 合约注册表
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// RegisterContract 注册合约
func (e *Engine) RegisterContract(address, name string, contractType models.ContractType, iface map[string][]string) (*models.ContractInfo, error) {
	return e.registry.Register(address, name, contractType, iface)
}

// VerifyContract 通过链上数据验证合约
func (e *Engine) VerifyContract(ctx context.Context, address string) (bool, error) {
	return e.registry.Verify(ctx, address)
}

// GetContract 查询已注册合约
func (e *Engine) GetContract(address string) (*models.ContractInfo, error) {
	return e.registry.Get(address)
}

// SimulateContract 对合约调用做dry-run
func (e *Engine) SimulateContract(ctx context.Context, contract, function string, params map[string]interface{}, source string) (*models.SimulationResult, error) {
	return e.simulator.Simulate(ctx, contract, function, params, source)
}

// EstimateGas 估算合约调用的资源消耗
// 估算仅供参考，执行记账以模拟结果为准
func (e *Engine) EstimateGas(contract, function string, params map[string]interface{}) (uint64, error) {
	if params == nil {
		return 0, errors.NewInvalidParameters("参数映射不能为nil")
	}
	if function == "" {
		return 0, errors.NewInvalidParameters("函数名不能为空")
	}
	return e.estimator.Estimate(contract, function, params), nil
}

// InvokeContract 执行单笔合约调用
func (e *Engine) InvokeContract(ctx context.Context, op *models.ContractOperation, source string) (string, error) {
	id, err := e.coordinator.Invoke(ctx, op, source)
	if err != nil {
		return "", err
	}
	e.record(id, op, source, false)
	return id, nil
}

// ExecuteCrossContractOperation 执行跨合约操作组
// atomic为true时整组全有或全无；为false时各操作独立提交
func (e *Engine) ExecuteCrossContractOperation(ctx context.Context, ops []models.ContractOperation, source string, atomic bool) ([]string, error) {
	ids, err := e.coordinator.Execute(ctx, ops, source, atomic)
	if err != nil {
		return ids, err
	}

	for i := range ops {
		id := ids[0]
		if !atomic && i < len(ids) {
			id = ids[i]
		}
		e.record(id, &ops[i], source, atomic)
	}
	return ids, nil
}

// GetSwapQuote 获取兑换报价
func (e *Engine) GetSwapQuote(ctx context.Context, inputAsset, outputAsset string, inputAmount *big.Int, slippage float64) (*models.SwapQuote, error) {
	return e.amm.GetSwapQuote(ctx, inputAsset, outputAsset, inputAmount, slippage)
}

// ExecuteSwap 执行兑换
func (e *Engine) ExecuteSwap(ctx context.Context, quote *models.SwapQuote, source string, maxSlippage float64) (string, error) {
	id, op, err := e.amm.ExecuteSwap(ctx, quote, source, maxSlippage)
	if err != nil {
		return "", err
	}
	e.record(id, op, source, false)
	return id, nil
}

// AddLiquidity 添加流动性
func (e *Engine) AddLiquidity(ctx context.Context, poolID string, amountA, amountB *big.Int, source string, minShares *big.Int) (string, error) {
	return e.amm.AddLiquidity(ctx, poolID, amountA, amountB, source, minShares)
}

// RemoveLiquidity 移除流动性
func (e *Engine) RemoveLiquidity(ctx context.Context, poolID string, shares *big.Int, source string, minTokenA, minTokenB *big.Int) (string, error) {
	return e.amm.RemoveLiquidity(ctx, poolID, shares, source, minTokenA, minTokenB)
}

// GetLiquidityPools 发现流动性池
func (e *Engine) GetLiquidityPools(ctx context.Context) ([]*models.LiquidityPool, error) {
	return e.amm.GetLiquidityPools(ctx)
}

// SubmitProtected 经MEV保护通道提交单笔操作
func (e *Engine) SubmitProtected(ctx context.Context, op *models.ContractOperation, source string, level mev.ProtectionLevel) (string, error) {
	id, err := e.mev.Submit(ctx, op, source, level)
	if err != nil {
		return "", err
	}
	e.record(id, op, source, false)
	return id, nil
}

// Health 运行时健康检查
func (e *Engine) Health(ctx context.Context) (*runtime.HealthStatus, error) {
	return e.client.Health(ctx)
}

// Cleanup 清空报价缓存和gas估算缓存
// 注册表条目保留；可与进行中的读取并发调用
func (e *Engine) Cleanup() {
	e.amm.Quotes().Flush()
	e.estimator.Purge()
	e.logger.Info("引擎缓存已清空")
}

// GetContractStatistics 聚合统计视图
func (e *Engine) GetContractStatistics() models.ContractStatistics {
	return models.ContractStatistics{
		KnownContracts:       e.registry.Count(),
		VerifiedContracts:    e.registry.VerifiedCount(),
		CachedQuotes:         e.amm.Quotes().Count(),
		CachedGasEstimates:   e.estimator.CacheLen(),
		MEVProtectionEnabled: e.mev.Enabled(),
	}
}

// Close 关闭流水输出器与运行时连接
func (e *Engine) Close() error {
	if err := e.journal.Close(); err != nil {
		e.logger.Errorf("关闭流水输出器失败: %v", err)
	}
	return e.client.Close()
}

// record 写执行流水，失败只记日志不影响交易路径
func (e *Engine) record(txID string, op *models.ContractOperation, source string, atomic bool) {
	err := e.journal.WriteRecord(&journal.Record{
		TransactionID: txID,
		Operation:     op.Type,
		Contract:      op.Contract,
		Function:      op.Function,
		Source:        source,
		Atomic:        atomic,
		SubmittedAt:   time.Now(),
	})
	if err != nil {
		e.logger.Warnf("写执行流水失败: %v", err)
	}
}
