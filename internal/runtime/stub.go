package runtime

import (
	"context"
	"fmt"
	"sync"
)

// StubClient 测试用的运行时客户端
// 所有方法线程安全；模拟结果可按(合约,函数)粒度配置，
// 默认对任意调用返回成功并给出与参数规模相关的资源消耗
type StubClient struct {
	mu sync.Mutex

	// 按 contract|function 键配置的固定响应
	simResponses map[string]*SimulateResponse

	// 按 contract|key 键配置的链上数据
	contractData map[string]*LedgerEntry

	// 记录所有提交过的交易
	submitted []*SubmitRequest

	// 各原语的强制错误，用于模拟传输层故障
	SimulateErr error
	SubmitErr   error
	LookupErr   error

	// 提交计数器，用于生成可预测的交易哈希
	txCounter int

	// 当前ledger序号
	LatestLedger uint32
}

// NewStubClient 创建测试桩
func NewStubClient() *StubClient {
	return &StubClient{
		simResponses: make(map[string]*SimulateResponse),
		contractData: make(map[string]*LedgerEntry),
		LatestLedger: 1000,
	}
}

func stubKey(a, b string) string {
	return a + "|" + b
}

// SetSimulateResponse 配置指定(合约,函数)的模拟响应
func (s *StubClient) SetSimulateResponse(contract, function string, resp *SimulateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simResponses[stubKey(contract, function)] = resp
}

// FailFunction 让指定(合约,函数)的模拟返回业务失败
func (s *StubClient) FailFunction(contract, function, reason string) {
	s.SetSimulateResponse(contract, function, &SimulateResponse{
		Success: false,
		Error:   reason,
	})
}

// SetContractData 配置链上数据查询结果
func (s *StubClient) SetContractData(contract, key string, value interface{}, ledger uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contractData[stubKey(contract, key)] = &LedgerEntry{
		Key:                key,
		Value:              value,
		LastModifiedLedger: ledger,
	}
}

// Submitted 返回提交记录的副本
func (s *StubClient) Submitted() []*SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*SubmitRequest, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// SimulateTransaction 实现Client接口
func (s *StubClient) SimulateTransaction(ctx context.Context, req *CallRequest) (*SimulateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SimulateErr != nil {
		return nil, s.SimulateErr
	}

	if resp, ok := s.simResponses[stubKey(req.Contract, req.Function)]; ok {
		return resp, nil
	}

	// 默认成功响应，资源消耗随参数数量增长
	paramCount := uint64(len(req.Params))
	return &SimulateResponse{
		Success:         true,
		CPUInstructions: 1_000_000 + paramCount*150_000,
		MemoryBytes:     64_000 + paramCount*4_000,
		Result:          map[string]interface{}{"status": "ok"},
	}, nil
}

// SendTransaction 实现Client接口
func (s *StubClient) SendTransaction(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}

	s.txCounter++
	s.submitted = append(s.submitted, req)
	return &SubmitResponse{
		Hash:   fmt.Sprintf("stubtx%04d", s.txCounter),
		Ledger: s.LatestLedger,
		Status: "PENDING",
	}, nil
}

// GetContractData 实现Client接口
func (s *StubClient) GetContractData(ctx context.Context, contract, key string) (*LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LookupErr != nil {
		return nil, s.LookupErr
	}

	entry, ok := s.contractData[stubKey(contract, key)]
	if !ok {
		return nil, nil
	}
	return entry, nil
}

// Health 实现Client接口
func (s *StubClient) Health(ctx context.Context) (*HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &HealthStatus{Status: "healthy", LatestLedger: s.LatestLedger}, nil
}

// Close 实现Client接口
func (s *StubClient) Close() error {
	return nil
}
