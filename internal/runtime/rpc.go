package runtime

import (
	"context"
	"fmt"

	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// RPC方法名，与Soroban RPC端点的JSON-RPC方法对应
const (
	methodSimulate    = "simulateTransaction"
	methodSend        = "sendTransaction"
	methodLedgerEntry = "getContractData"
	methodHealth      = "getHealth"
)

// RPCClient 基于JSON-RPC的生产运行时客户端
type RPCClient struct {
	endpoint string
	client   *ethrpc.Client
	logger   *logrus.Logger
}

// NewRPCClient 连接到Soroban RPC端点
func NewRPCClient(ctx context.Context, endpoint string, logger *logrus.Logger) (*RPCClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("RPC端点不能为空")
	}

	client, err := ethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("连接RPC端点失败: %w", err)
	}

	logger.Infof("已连接到合约运行时RPC端点: %s", endpoint)

	return &RPCClient{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}, nil
}

// SimulateTransaction 转发dry-run调用
func (c *RPCClient) SimulateTransaction(ctx context.Context, req *CallRequest) (*SimulateResponse, error) {
	var resp SimulateResponse
	if err := c.client.CallContext(ctx, &resp, methodSimulate, req); err != nil {
		return nil, fmt.Errorf("simulateTransaction调用失败: %w", err)
	}
	return &resp, nil
}

// SendTransaction 提交交易
func (c *RPCClient) SendTransaction(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.CallContext(ctx, &resp, methodSend, req); err != nil {
		return nil, fmt.Errorf("sendTransaction调用失败: %w", err)
	}
	c.logger.Debugf("交易已提交: %s (ledger %d)", resp.Hash, resp.Ledger)
	return &resp, nil
}

// GetContractData 查询合约链上数据
func (c *RPCClient) GetContractData(ctx context.Context, contract, key string) (*LedgerEntry, error) {
	var entry *LedgerEntry
	if err := c.client.CallContext(ctx, &entry, methodLedgerEntry, contract, key); err != nil {
		return nil, fmt.Errorf("getContractData调用失败: %w", err)
	}
	// 数据不存在时端点返回null，保持(nil, nil)约定
	return entry, nil
}

// Health 运行时健康检查
func (c *RPCClient) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.client.CallContext(ctx, &status, methodHealth); err != nil {
		return nil, fmt.Errorf("getHealth调用失败: %w", err)
	}
	return &status, nil
}

// Close 关闭底层RPC连接
func (c *RPCClient) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
