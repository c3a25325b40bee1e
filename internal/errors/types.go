package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 注册表相关错误
	ErrorTypeRegistry ErrorType = iota

	// 参数相关错误
	ErrorTypeParameters

	// 远程调用层错误
	ErrorTypeTransport
	ErrorTypeTimeout

	// 执行相关错误
	ErrorTypeExecution

	// AMM相关错误
	ErrorTypeAMM

	// MEV提交相关错误
	ErrorTypeMEV

	// 系统相关错误
	ErrorTypeSystem
	ErrorTypeConfig
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// 错误码常量，调用方通过错误码区分具体失败种类
const (
	CodeInvalidAddress    = "INVALID_ADDRESS"
	CodeDuplicateAddress  = "DUPLICATE_ADDRESS"
	CodeNotFound          = "CONTRACT_NOT_FOUND"
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeSimulationTimeout = "SIMULATION_TIMEOUT"
	CodeTransportFailure  = "TRANSPORT_FAILURE"
	CodeAtomicAborted     = "ATOMIC_OPERATION_ABORTED"
	CodeSimulationFailed  = "SIMULATION_FAILED"
	CodeQuoteExpired      = "QUOTE_EXPIRED"
	CodeQuoteUnavailable  = "QUOTE_UNAVAILABLE"
	CodeMEVSubmission     = "MEV_SUBMISSION_FAILED"
)

// EngineError 引擎统一错误类型
type EngineError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"cause,omitempty"`
	Retryable bool                   `json:"retryable"`
	Contract  *string                `json:"contract,omitempty"`
	OpIndex   *int                   `json:"op_index,omitempty"`
}

// Error 实现error接口
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断是否可重试
func (e *EngineError) IsRetryable() bool {
	return e.Retryable
}

// WithContext 添加上下文信息
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithContract 添加关联合约地址
func (e *EngineError) WithContract(address string) *EngineError {
	e.Contract = &address
	return e
}

// New 创建新的引擎错误
func New(errorType ErrorType, severity ErrorSeverity, code, message string) *EngineError {
	return &EngineError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: determineRetryable(errorType),
	}
}

// Wrap 包装现有错误
func Wrap(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *EngineError {
	return &EngineError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Retryable: determineRetryable(errorType),
	}
}

// determineRetryable 根据错误类型判断是否可重试
func determineRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport, ErrorTypeTimeout:
		return true
	case ErrorTypeMEV:
		// 保护通道不可用时可以换标准通道重试
		return true
	default:
		return false
	}
}

// NewInvalidAddress 地址不符合合约地址格式
func NewInvalidAddress(address string) *EngineError {
	return New(ErrorTypeRegistry, SeverityMedium, CodeInvalidAddress,
		fmt.Sprintf("无效的合约地址: %s", address)).WithContract(address)
}

// NewDuplicateAddress 地址已注册（严格注册模式下使用）
func NewDuplicateAddress(address string) *EngineError {
	return New(ErrorTypeRegistry, SeverityLow, CodeDuplicateAddress,
		fmt.Sprintf("合约地址已注册: %s", address)).WithContract(address)
}

// NewNotFound 注册表中不存在该合约
func NewNotFound(address string) *EngineError {
	return New(ErrorTypeRegistry, SeverityMedium, CodeNotFound,
		fmt.Sprintf("合约未注册: %s", address)).WithContract(address)
}

// NewInvalidParameters 调用参数缺失或格式错误
func NewInvalidParameters(reason string) *EngineError {
	return New(ErrorTypeParameters, SeverityMedium, CodeInvalidParameters,
		fmt.Sprintf("无效的调用参数: %s", reason))
}

// WrapTimeout 模拟调用超出调用方指定的期限
func WrapTimeout(err error) *EngineError {
	return Wrap(err, ErrorTypeTimeout, SeverityMedium, CodeSimulationTimeout,
		"模拟调用超时")
}

// WrapTransport 远程调用传输层失败
func WrapTransport(err error) *EngineError {
	return Wrap(err, ErrorTypeTransport, SeverityHigh, CodeTransportFailure,
		"远程调用失败")
}

// NewAtomicAborted 原子执行组因某个操作模拟失败而整体中止
// index和contract标识首个失败的操作
func NewAtomicAborted(index int, contract, reason string) *EngineError {
	e := New(ErrorTypeExecution, SeverityHigh, CodeAtomicAborted,
		fmt.Sprintf("原子操作组已中止，操作#%d模拟失败: %s", index, reason))
	e.OpIndex = &index
	return e.WithContract(contract)
}

// NewSimulationFailed 单笔调用的模拟结果为失败
func NewSimulationFailed(contract, reason string) *EngineError {
	return New(ErrorTypeExecution, SeverityMedium, CodeSimulationFailed,
		fmt.Sprintf("合约调用模拟失败: %s", reason)).WithContract(contract)
}

// NewQuoteExpired 报价已过期
func NewQuoteExpired(inputAsset, outputAsset string) *EngineError {
	return New(ErrorTypeAMM, SeverityLow, CodeQuoteExpired,
		fmt.Sprintf("兑换报价已过期: %s -> %s", inputAsset, outputAsset))
}

// NewQuoteUnavailable 无法为该资产对生成报价
func NewQuoteUnavailable(inputAsset, outputAsset, reason string) *EngineError {
	return New(ErrorTypeAMM, SeverityMedium, CodeQuoteUnavailable,
		fmt.Sprintf("无法生成报价 %s -> %s: %s", inputAsset, outputAsset, reason))
}

// NewMEVSubmissionFailed 保护通道不可用且标准通道回退被禁用
func NewMEVSubmissionFailed(cause error) *EngineError {
	return Wrap(cause, ErrorTypeMEV, SeverityHigh, CodeMEVSubmission,
		"MEV保护通道提交失败")
}

// IsCode 判断错误（或其包装链）是否携带指定错误码
func IsCode(err error, code string) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code == code
	}
	return false
}

// errorTypeNames 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeRegistry:   "Registry",
	ErrorTypeParameters: "Parameters",
	ErrorTypeTransport:  "Transport",
	ErrorTypeTimeout:    "Timeout",
	ErrorTypeExecution:  "Execution",
	ErrorTypeAMM:        "AMM",
	ErrorTypeMEV:        "MEV",
	ErrorTypeSystem:     "System",
	ErrorTypeConfig:     "Config",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

// severityNames 严重级别字符串映射
var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}
