package executor

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorotrade/internal/errors"
	"sorotrade/internal/runtime"
	"sorotrade/internal/simulation"
	"sorotrade/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCoordinator(stub *runtime.StubClient) *Coordinator {
	logger := testLogger()
	return NewCoordinator(stub, simulation.NewGateway(stub, logger), logger)
}

func swapOp(contract string) models.ContractOperation {
	return models.ContractOperation{
		Type:     models.OperationTypeSwap,
		Contract: contract,
		Function: "swap",
		Params: map[string]interface{}{
			"input_asset":  "USDC",
			"output_asset": "XLM",
			"amount":       "1000",
		},
	}
}

func transferOp(contract string) models.ContractOperation {
	return models.ContractOperation{
		Type:     models.OperationTypeTransfer,
		Contract: contract,
		Function: "transfer",
		Params: map[string]interface{}{
			"to":     "GDEST",
			"amount": "500",
		},
	}
}

func TestExecute_AtomicSuccess(t *testing.T) {
	stub := runtime.NewStubClient()
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		transferOp("CTOKEN01"),
		swapOp("CAMM0002"),
	}

	ids, err := coord.Execute(context.Background(), ops, "GSOURCE", true)
	require.NoError(t, err)

	// 原子模式返回单个atomic-前缀标识
	require.Len(t, ids, 1)
	assert.True(t, strings.HasPrefix(ids[0], "atomic-"))

	// 整组打包为单笔提交
	submitted := stub.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Calls, 3)
	assert.Equal(t, "CAMM0001", submitted[0].Calls[0].Contract)
	assert.Equal(t, "CTOKEN01", submitted[0].Calls[1].Contract)
	assert.Equal(t, "CAMM0002", submitted[0].Calls[2].Contract)
	assert.Equal(t, "GSOURCE", submitted[0].Source)
}

func TestExecute_AtomicAbort(t *testing.T) {
	stub := runtime.NewStubClient()
	stub.FailFunction("CTOKEN01", "transfer", "余额不足")
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		transferOp("CTOKEN01"),
		swapOp("CAMM0002"),
	}

	ids, err := coord.Execute(context.Background(), ops, "GSOURCE", true)
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.True(t, errors.IsCode(err, errors.CodeAtomicAborted))

	// 错误应标识首个失败的操作
	var engineErr *errors.EngineError
	require.True(t, stderrors.As(err, &engineErr))
	require.NotNil(t, engineErr.OpIndex)
	assert.Equal(t, 1, *engineErr.OpIndex)
	assert.Equal(t, "CTOKEN01", *engineErr.Contract)

	// 中止发生在提交前，不能有任何链上副作用
	assert.Empty(t, stub.Submitted())
}

func TestExecute_AtomicAbort_FirstFailureWins(t *testing.T) {
	stub := runtime.NewStubClient()
	stub.FailFunction("CAMM0001", "swap", "第一个失败")
	stub.FailFunction("CTOKEN01", "transfer", "第二个失败")
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		transferOp("CTOKEN01"),
	}

	_, err := coord.Execute(context.Background(), ops, "GSOURCE", true)
	require.Error(t, err)

	// 多个操作会失败时报告输入顺序中的首个
	var engineErr *errors.EngineError
	require.True(t, stderrors.As(err, &engineErr))
	assert.Equal(t, 0, *engineErr.OpIndex)
	assert.Equal(t, "CAMM0001", *engineErr.Contract)
}

func TestExecute_IndividualSuccess(t *testing.T) {
	stub := runtime.NewStubClient()
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		transferOp("CTOKEN01"),
	}

	ids, err := coord.Execute(context.Background(), ops, "GSOURCE", false)
	require.NoError(t, err)

	// 每个操作恰好一个ind-前缀标识，与输入同序
	require.Len(t, ids, 2)
	for _, id := range ids {
		assert.True(t, strings.HasPrefix(id, "ind-"))
	}
	assert.NotEqual(t, ids[0], ids[1])

	// 各操作独立提交
	submitted := stub.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, "CAMM0001", submitted[0].Calls[0].Contract)
	assert.Equal(t, "CTOKEN01", submitted[1].Calls[0].Contract)
}

func TestExecute_IndividualPartialFailure(t *testing.T) {
	stub := runtime.NewStubClient()
	stub.FailFunction("CTOKEN01", "transfer", "余额不足")
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		transferOp("CTOKEN01"),
		swapOp("CAMM0002"),
	}

	ids, err := coord.Execute(context.Background(), ops, "GSOURCE", false)

	// 单个操作失败不阻塞其余操作，也不算整体失败
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// 失败操作占位，不提交
	assert.True(t, strings.HasPrefix(ids[0], "ind-"))
	assert.True(t, strings.HasPrefix(ids[1], "ind-failed-"))
	assert.True(t, strings.HasPrefix(ids[2], "ind-"))

	submitted := stub.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, "CAMM0001", submitted[0].Calls[0].Contract)
	assert.Equal(t, "CAMM0002", submitted[1].Calls[0].Contract)
}

func TestExecute_EmptyOps(t *testing.T) {
	coord := newTestCoordinator(runtime.NewStubClient())

	_, err := coord.Execute(context.Background(), nil, "GSOURCE", true)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))

	_, err = coord.Execute(context.Background(), []models.ContractOperation{}, "GSOURCE", false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))
}

func TestExecute_InvalidOperation(t *testing.T) {
	stub := runtime.NewStubClient()
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{
		swapOp("CAMM0001"),
		{Type: models.OperationTypeInvoke, Contract: "CTOKEN01", Function: "", Params: map[string]interface{}{}},
	}

	_, err := coord.Execute(context.Background(), ops, "GSOURCE", false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))

	// 校验在任何模拟或提交前完成
	assert.Empty(t, stub.Submitted())
}

func TestExecute_AtomicTransportFailure(t *testing.T) {
	stub := runtime.NewStubClient()
	stub.SimulateErr = stderrors.New("connection refused")
	coord := newTestCoordinator(stub)

	ops := []models.ContractOperation{swapOp("CAMM0001")}

	_, err := coord.Execute(context.Background(), ops, "GSOURCE", true)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTransportFailure))
	assert.Empty(t, stub.Submitted())
}

func TestSubmit(t *testing.T) {
	stub := runtime.NewStubClient()
	coord := newTestCoordinator(stub)

	op := swapOp("CAMM0001")
	hash, err := coord.Submit(context.Background(), &op, "GSOURCE")
	require.NoError(t, err)

	// Submit返回裸哈希，前缀由调用方决定
	assert.NotEmpty(t, hash)
	assert.False(t, strings.HasPrefix(hash, "ind-"))
	assert.Len(t, stub.Submitted(), 1)
}

func TestSubmit_SimulationFailed(t *testing.T) {
	stub := runtime.NewStubClient()
	stub.FailFunction("CAMM0001", "swap", "流动性不足")
	coord := newTestCoordinator(stub)

	op := swapOp("CAMM0001")
	_, err := coord.Submit(context.Background(), &op, "GSOURCE")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSimulationFailed))
	assert.Empty(t, stub.Submitted())
}

func TestSubmit_NilOperation(t *testing.T) {
	coord := newTestCoordinator(runtime.NewStubClient())

	_, err := coord.Submit(context.Background(), nil, "GSOURCE")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParameters))
}

func TestInvoke(t *testing.T) {
	stub := runtime.NewStubClient()
	coord := newTestCoordinator(stub)

	op := transferOp("CTOKEN01")
	id, err := coord.Invoke(context.Background(), &op, "GSOURCE")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "ind-"))
}
