package mev

import (
	"context"

	"sorotrade/internal/errors"
	"sorotrade/internal/executor"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"

	"github.com/sirupsen/logrus"
)

// ProtectionLevel 保护级别
type ProtectionLevel string

const (
	LevelStandard  ProtectionLevel = "standard"
	LevelProtected ProtectionLevel = "protected"
)

// 交易标识前缀约定
const (
	prefixProtected = "protected-"
	prefixStandard  = "standard-"
)

// Config MEV提交器配置
type Config struct {
	Enabled         bool `mapstructure:"enabled"`          // 是否启用保护通道
	FallbackEnabled bool `mapstructure:"fallback_enabled"` // 保护通道失败时是否回退标准通道
}

// Submitter MEV保护提交器
// 纯路由决策：按配置把单笔操作送入私有保护通道或标准协调器路径，
// 两条通道之外不承诺额外的正确性差异
type Submitter struct {
	coordinator *executor.Coordinator
	simulator   *simulation.Gateway
	protected   runtime.Client // 保护通道客户端，可与标准通道共用
	config      Config
	logger      *logrus.Logger
}

// NewSubmitter 创建MEV保护提交器
func NewSubmitter(coord *executor.Coordinator, sim *simulation.Gateway, protectedClient runtime.Client, config Config, logger *logrus.Logger) *Submitter {
	return &Submitter{
		coordinator: coord,
		simulator:   sim,
		protected:   protectedClient,
		config:      config,
		logger:      logger,
	}
}

// Enabled MEV保护是否启用
func (s *Submitter) Enabled() bool {
	return s.config.Enabled
}

// Submit 提交单笔操作
// 保护启用且级别非standard时走保护通道（protected-前缀），否则走
// 标准协调器路径（standard-前缀）。保护通道不可用时回退标准通道，
// 除非回退被显式禁用（此时返回MEVSubmissionFailure）
func (s *Submitter) Submit(ctx context.Context, op *models.ContractOperation, source string, level ProtectionLevel) (string, error) {
	if op == nil || !op.Valid() {
		return "", errors.NewInvalidParameters("操作缺少函数名、参数映射或目标合约")
	}
	if level == "" {
		level = LevelStandard
	}

	if !s.config.Enabled || level == LevelStandard {
		return s.submitStandard(ctx, op, source)
	}

	id, err := s.submitProtected(ctx, op, source)
	if err == nil {
		return id, nil
	}

	// 模拟层面的业务失败换通道也无济于事，直接上抛
	if errors.IsCode(err, errors.CodeSimulationFailed) {
		return "", err
	}

	if !s.config.FallbackEnabled {
		return "", errors.NewMEVSubmissionFailed(err)
	}

	s.logger.Warnf("保护通道提交失败，回退标准通道: %v", err)
	return s.submitStandard(ctx, op, source)
}

// submitStandard 标准通道路径
func (s *Submitter) submitStandard(ctx context.Context, op *models.ContractOperation, source string) (string, error) {
	hash, err := s.coordinator.Submit(ctx, op, source)
	if err != nil {
		return "", err
	}
	return prefixStandard + hash, nil
}

// submitProtected 保护通道路径
// 与标准路径一样先模拟再提交，只是提交走私有通道
func (s *Submitter) submitProtected(ctx context.Context, op *models.ContractOperation, source string) (string, error) {
	result, err := s.simulator.Simulate(ctx, op.Contract, op.Function, op.Params, source)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", errors.NewSimulationFailed(op.Contract, result.Error)
	}

	resp, err := s.protected.SendTransaction(ctx, &runtime.SubmitRequest{
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

	s.logger.Infof("交易经保护通道提交: %s", resp.Hash)
	return prefixProtected + resp.Hash, nil
}
