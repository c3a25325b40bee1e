package models

import (
	"time"
)

// ContractType 合约类型
type ContractType string

const (
	ContractTypeAMM   ContractType = "AMM"   // 自动做市商合约
	ContractTypeDEX   ContractType = "DEX"   // 去中心化交易所合约
	ContractTypeToken ContractType = "TOKEN" // 代币合约
	ContractTypeOther ContractType = "OTHER" // 其他合约
)

// ContractInfo 已部署合约的身份与元数据
type ContractInfo struct {
	Address          string              `json:"address"`            // 合约地址（strkey C...格式，注册表内唯一）
	Name             string              `json:"name"`               // 合约可读名称
	Type             ContractType        `json:"type"`               // 合约类型
	Interface        map[string][]string `json:"interface"`          // 函数名到参数名列表的映射
	Verified         bool                `json:"verified"`           // 是否已通过链上数据验证
	DeployedAtLedger uint32              `json:"deployed_at_ledger"` // 部署所在ledger序号（验证后才有值）
	RegisteredAt     time.Time           `json:"registered_at"`      // 注册时间
}

// HasFunction 判断合约接口中是否声明了指定函数
func (c *ContractInfo) HasFunction(name string) bool {
	if c.Interface == nil {
		return false
	}
	_, ok := c.Interface[name]
	return ok
}

// OperationType 合约操作类型
type OperationType string

const (
	OperationTypeSwap            OperationType = "SWAP"
	OperationTypeAddLiquidity    OperationType = "ADD_LIQUIDITY"
	OperationTypeRemoveLiquidity OperationType = "REMOVE_LIQUIDITY"
	OperationTypeTransfer        OperationType = "TRANSFER"
	OperationTypeInvoke          OperationType = "INVOKE" // 通用合约调用
)

// ContractOperation 单次逻辑合约调用
// 构造后不再修改，调用完成即丢弃
type ContractOperation struct {
	Type        OperationType          `json:"type"`                   // 操作类型
	Contract    string                 `json:"contract"`               // 目标合约地址
	Function    string                 `json:"function"`               // 函数名，不能为空
	Params      map[string]interface{} `json:"params"`                 // 参数映射，不能为nil
	GasEstimate uint64                 `json:"gas_estimate,omitempty"` // 可选的预计算gas估算
}

// Valid 检查操作的基本约束
func (op *ContractOperation) Valid() bool {
	return op.Function != "" && op.Params != nil && op.Contract != ""
}

// ContractStatistics 引擎聚合统计视图
type ContractStatistics struct {
	KnownContracts       int  `json:"known_contracts"`        // 已注册合约数
	VerifiedContracts    int  `json:"verified_contracts"`     // 已验证合约数
	CachedQuotes         int  `json:"cached_quotes"`          // 当前缓存报价数
	CachedGasEstimates   int  `json:"cached_gas_estimates"`   // 当前缓存gas估算数
	MEVProtectionEnabled bool `json:"mev_protection_enabled"` // MEV保护是否启用
}
