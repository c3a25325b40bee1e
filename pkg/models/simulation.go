package models

// ResourceCost Soroban资源计量结果
type ResourceCost struct {
	CPUInstructions uint64 `json:"cpu_instructions"` // CPU指令数
	MemoryBytes     uint64 `json:"memory_bytes"`     // 内存字节数
}

// Total 资源单位合计（指令数 + 字节数），用于粗粒度比较
func (rc ResourceCost) Total() uint64 {
	return rc.CPUInstructions + rc.MemoryBytes
}

// IsZero 资源消耗是否为零
func (rc ResourceCost) IsZero() bool {
	return rc.CPUInstructions == 0 && rc.MemoryBytes == 0
}

// StateChange 模拟执行产生的单条状态变更记录
type StateChange struct {
	Contract string      `json:"contract"` // 发生变更的合约地址
	Key      string      `json:"key"`      // 存储键
	Before   interface{} `json:"before"`   // 变更前的值
	After    interface{} `json:"after"`    // 变更后的值
}

// ContractEvent 模拟执行期间合约发出的事件
type ContractEvent struct {
	Contract string      `json:"contract"` // 发出事件的合约地址
	Topic    string      `json:"topic"`    // 事件主题
	Data     interface{} `json:"data"`     // 事件数据
}

// SimulationResult 一次dry-run的归一化结果
// 约束：Success为false时资源消耗为零、无返回值且Error非空；
// Success为true时Error为空
type SimulationResult struct {
	Success      bool            `json:"success"`
	Cost         ResourceCost    `json:"cost"`
	ReturnValue  interface{}     `json:"return_value,omitempty"`
	StateChanges []StateChange   `json:"state_changes,omitempty"`
	Events       []ContractEvent `json:"events,omitempty"`
	Error        string          `json:"error,omitempty"`
}
