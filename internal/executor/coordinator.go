package executor

import (
	"context"
	"fmt"

	"sorotrade/internal/errors"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OperationState 逻辑操作组的状态
// 状态机：PENDING → SIMULATED → {SUBMITTED | ABORTED}
type OperationState string

const (
	StatePending   OperationState = "PENDING"
	StateSimulated OperationState = "SIMULATED"
	StateSubmitted OperationState = "SUBMITTED"
	StateAborted   OperationState = "ABORTED"
)

// 交易标识前缀约定
const (
	prefixIndividual = "ind-"
	prefixAtomic     = "atomic-"
)

// Coordinator 执行协调器
// 把逻辑合约操作转换为已提交的交易，并实施原子/非原子执行契约。
// 原子模式下全部操作先模拟，任何一个失败则整组在提交前中止，
// 不产生任何链上副作用；之后打包为单笔交易，依赖运行时自身的
// 交易原子性保证全有或全无
type Coordinator struct {
	client  runtime.Client
	gateway *simulation.Gateway
	logger  *logrus.Logger
}

// NewCoordinator 创建执行协调器
func NewCoordinator(client runtime.Client, gateway *simulation.Gateway, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		client:  client,
		gateway: gateway,
		logger:  logger,
	}
}

// Execute 执行一组逻辑操作
// 原子模式：按调用方给定顺序逐个模拟，首个失败触发整组中止
// （AtomicOperationAborted），全部成功则打包为单笔提交，返回单个
// atomic-前缀标识。
// 非原子模式：各操作独立模拟和提交，单个操作的模拟失败不阻塞
// 其余操作，每个操作对应一个ind-前缀标识（与输入同序），部分完成
// 是预期结果
func (c *Coordinator) Execute(ctx context.Context, ops []models.ContractOperation, source string, atomic bool) ([]string, error) {
	if len(ops) == 0 {
		return nil, errors.NewInvalidParameters("操作列表不能为空")
	}
	for i := range ops {
		if !ops[i].Valid() {
			return nil, errors.NewInvalidParameters(
				fmt.Sprintf("操作#%d缺少函数名、参数映射或目标合约", i))
		}
	}

	if atomic {
		return c.executeAtomic(ctx, ops, source)
	}
	return c.executeIndividual(ctx, ops, source)
}

// executeAtomic 原子执行路径
func (c *Coordinator) executeAtomic(ctx context.Context, ops []models.ContractOperation, source string) ([]string, error) {
	state := StatePending

	// 全部操作先模拟，按输入顺序决定首个失败
	for i := range ops {
		result, err := c.gateway.Simulate(ctx, ops[i].Contract, ops[i].Function, ops[i].Params, source)
		if err != nil {
			// 传输层失败原样上抛，此时尚未提交任何交易
			return nil, err
		}
		if !result.Success {
			state = StateAborted
			c.logger.Warnf("原子操作组中止于操作#%d (%s.%s): %s，状态=%s",
				i, ops[i].Contract, ops[i].Function, result.Error, state)
			return nil, errors.NewAtomicAborted(i, ops[i].Contract, result.Error)
		}
	}
	state = StateSimulated

	// 打包为单笔交易提交
	calls := make([]runtime.CallRequest, len(ops))
	for i := range ops {
		calls[i] = runtime.CallRequest{
			Source:   source,
			Contract: ops[i].Contract,
			Function: ops[i].Function,
			Params:   ops[i].Params,
		}
	}

	resp, err := c.client.SendTransaction(ctx, &runtime.SubmitRequest{Source: source, Calls: calls})
	if err != nil {
		return nil, errors.WrapTransport(err)
	}
	state = StateSubmitted

	c.logger.Infof("原子操作组已提交: %d个操作, 交易=%s, 状态=%s", len(ops), resp.Hash, state)
	return []string{prefixAtomic + resp.Hash}, nil
}

// executeIndividual 非原子执行路径
// 每个操作恰好产生一个标识；模拟失败的操作不提交，用本地生成的
// 占位标识占据对应位置
func (c *Coordinator) executeIndividual(ctx context.Context, ops []models.ContractOperation, source string) ([]string, error) {
	ids := make([]string, 0, len(ops))

	for i := range ops {
		result, err := c.gateway.Simulate(ctx, ops[i].Contract, ops[i].Function, ops[i].Params, source)
		if err != nil {
			// 传输层失败：已提交的交易保持有效，错误连同已有标识上抛
			return ids, err
		}

		if !result.Success {
			// 已知会失败的调用不付提交成本
			placeholder := prefixIndividual + "failed-" + uuid.NewString()
			c.logger.Warnf("操作#%d模拟失败，跳过提交 (%s.%s): %s",
				i, ops[i].Contract, ops[i].Function, result.Error)
			ids = append(ids, placeholder)
			continue
		}

		resp, err := c.client.SendTransaction(ctx, &runtime.SubmitRequest{
			Source: source,
			Calls: []runtime.CallRequest{{
				Source:   source,
				Contract: ops[i].Contract,
				Function: ops[i].Function,
				Params:   ops[i].Params,
			}},
		})
		if err != nil {
			return ids, errors.WrapTransport(err)
		}

		ids = append(ids, prefixIndividual+resp.Hash)
	}

	c.logger.Infof("非原子操作组执行完成: %d个操作", len(ops))
	return ids, nil
}

// Submit 模拟并提交单个操作，返回未加前缀的交易哈希
// 供AMM门面和MEV提交器等上层按各自的前缀约定包装
func (c *Coordinator) Submit(ctx context.Context, op *models.ContractOperation, source string) (string, error) {
	if op == nil || !op.Valid() {
		return "", errors.NewInvalidParameters("操作缺少函数名、参数映射或目标合约")
	}

	result, err := c.gateway.Simulate(ctx, op.Contract, op.Function, op.Params, source)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", errors.NewSimulationFailed(op.Contract, result.Error)
	}

	resp, err := c.client.SendTransaction(ctx, &runtime.SubmitRequest{
		Source: source,
		Calls: []runtime.CallRequest{{
			Source:   source,
			Contract: op.Contract,
			Function: op.Function,
			Params:   op.Params,
		}},
	})
	if err != nil {
		return "", errors.WrapTransport(err)
	}

	return resp.Hash, nil
}

// Invoke 单笔合约调用，标识采用ind-前缀约定
func (c *Coordinator) Invoke(ctx context.Context, op *models.ContractOperation, source string) (string, error) {
	hash, err := c.Submit(ctx, op, source)
	if err != nil {
		return "", err
	}
	return prefixIndividual + hash, nil
}
