package runtime

import (
	"context"
)

// CallRequest 单笔合约调用请求
type CallRequest struct {
	Source   string                 `json:"source,omitempty"` // 发起账户（签名由外部协作方负责）
	Contract string                 `json:"contract"`         // 目标合约地址
	Function string                 `json:"function"`         // 函数名
	Params   map[string]interface{} `json:"params"`           // 调用参数
}

// StateChangeEntry 模拟响应中的状态变更条目
type StateChangeEntry struct {
	Contract string      `json:"contract"`
	Key      string      `json:"key"`
	Before   interface{} `json:"before"`
	After    interface{} `json:"after"`
}

// EventEntry 模拟响应中的事件条目
type EventEntry struct {
	Contract string      `json:"contract"`
	Topic    string      `json:"topic"`
	Data     interface{} `json:"data"`
}

// SimulateResponse 远程simulateTransaction原语的响应
type SimulateResponse struct {
	Success         bool               `json:"success"`
	CPUInstructions uint64             `json:"cpu_instructions"`
	MemoryBytes     uint64             `json:"memory_bytes"`
	Result          interface{}        `json:"result,omitempty"`
	StateChanges    []StateChangeEntry `json:"state_changes,omitempty"`
	Events          []EventEntry       `json:"events,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// SubmitRequest 交易提交请求，多笔调用打包进同一交易
type SubmitRequest struct {
	Source string        `json:"source"`
	Calls  []CallRequest `json:"calls"`
}

// SubmitResponse 交易提交回执
type SubmitResponse struct {
	Hash   string `json:"hash"`   // 交易哈希
	Ledger uint32 `json:"ledger"` // 接受交易的ledger序号
	Status string `json:"status"` // 提交状态
}

// LedgerEntry 链上状态查询结果
type LedgerEntry struct {
	Key                string      `json:"key"`
	Value              interface{} `json:"value"`
	LastModifiedLedger uint32      `json:"last_modified_ledger"`
}

// HealthStatus 运行时健康状态
type HealthStatus struct {
	Status       string `json:"status"`
	LatestLedger uint32 `json:"latest_ledger"`
}

// Client 合约运行时能力边界
// 引擎只依赖这一个接口与链交互；生产实现走JSON-RPC，
// 测试实现为StubClient
type Client interface {
	// SimulateTransaction 对单笔调用做dry-run
	SimulateTransaction(ctx context.Context, req *CallRequest) (*SimulateResponse, error)

	// SendTransaction 提交已打包的交易
	SendTransaction(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)

	// GetContractData 查询合约的链上存储数据，数据不存在时返回(nil, nil)
	GetContractData(ctx context.Context, contract, key string) (*LedgerEntry, error)

	// Health 运行时健康检查
	Health(ctx context.Context) (*HealthStatus, error)

	// Close 释放底层连接
	Close() error
}
