package simulation

import (
	"context"
	stderrors "errors"

	"sorotrade/internal/errors"
	"sorotrade/internal/runtime"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
)

// Gateway 模拟网关
// 包装远程simulateTransaction原语，把异构响应归一化为SimulationResult。
// 网关自身不设默认超时，期限完全由调用方通过context传入
type Gateway struct {
	client runtime.Client
	logger *logrus.Logger
}

// NewGateway 创建模拟网关
func NewGateway(client runtime.Client, logger *logrus.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger,
	}
}

// Simulate 对单笔合约调用做dry-run
// 参数映射为nil或函数名为空时直接返回InvalidParameters，不发起远程调用。
// 运行时报告的业务失败以success=false的结果返回而非错误；
// 传输层失败（超时、连接断开）作为错误向上传播
func (g *Gateway) Simulate(ctx context.Context, contract, function string, params map[string]interface{}, source string) (*models.SimulationResult, error) {
	if params == nil {
		return nil, errors.NewInvalidParameters("参数映射不能为nil")
	}
	if function == "" {
		return nil, errors.NewInvalidParameters("函数名不能为空")
	}
	if contract == "" {
		return nil, errors.NewInvalidParameters("合约地址不能为空")
	}

	req := &runtime.CallRequest{
		Source:   source,
		Contract: contract,
		Function: function,
		Params:   params,
	}

	resp, err := g.client.SimulateTransaction(ctx, req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.WrapTimeout(err).WithContract(contract)
		}
		return nil, errors.WrapTransport(err).WithContract(contract)
	}

	return g.normalize(contract, function, resp), nil
}

// normalize 把远程响应整形为SimulationResult
// 失败结果强制满足不变式：零资源消耗、无返回值、error非空
func (g *Gateway) normalize(contract, function string, resp *runtime.SimulateResponse) *models.SimulationResult {
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "合约执行失败"
		}
		g.logger.Debugf("模拟失败: %s.%s: %s", contract, function, reason)
		return &models.SimulationResult{
			Success: false,
			Error:   reason,
		}
	}

	result := &models.SimulationResult{
		Success: true,
		Cost: models.ResourceCost{
			CPUInstructions: resp.CPUInstructions,
			MemoryBytes:     resp.MemoryBytes,
		},
		ReturnValue: resp.Result,
	}

	for _, sc := range resp.StateChanges {
		result.StateChanges = append(result.StateChanges, models.StateChange{
			Contract: sc.Contract,
			Key:      sc.Key,
			Before:   sc.Before,
			After:    sc.After,
		})
	}

	for _, ev := range resp.Events {
		result.Events = append(result.Events, models.ContractEvent{
			Contract: ev.Contract,
			Topic:    ev.Topic,
			Data:     ev.Data,
		})
	}

	g.logger.Debugf("模拟成功: %s.%s (CPU指令=%d, 内存=%d字节)",
		contract, function, resp.CPUInstructions, resp.MemoryBytes)
	return result
}
