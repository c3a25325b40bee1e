package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sorotrade/internal/api"
	"sorotrade/internal/config"
	"sorotrade/internal/engine"
	"sorotrade/internal/logging"
	"sorotrade/internal/runtime"
	"sorotrade/internal/shutdown"
	"sorotrade/pkg/models"
)

var (
	// 基础参数
	configFile string
	endpoint   string
	verbose    bool

	// quote子命令参数
	quoteAmount   string
	quoteSlippage float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sorotrade",
		Short: "Soroban合约交互引擎",
		Long:  `面向交易应用的智能合约交互与跨合约执行引擎，支持模拟、原子执行、AMM兑换和MEV保护提交`,
		RunE:  runServe,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "覆盖Soroban RPC端点")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "详细输出")

	// 统计子命令
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "查看引擎统计信息",
		RunE:  runStats,
	}

	// 验证子命令
	verifyCmd := &cobra.Command{
		Use:   "verify [合约地址]",
		Short: "验证已注册合约的链上状态",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}

	// 报价子命令
	quoteCmd := &cobra.Command{
		Use:   "quote [输入资产] [输出资产]",
		Short: "查询兑换报价",
		Args:  cobra.ExactArgs(2),
		RunE:  runQuote,
	}
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "1000", "输入数量")
	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0, "滑点容忍度（0使用默认值）")

	rootCmd.AddCommand(statsCmd, verifyCmd, quoteCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

// setup 加载配置并构建引擎
func setup() (*config.Config, *engine.Engine, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}
	if endpoint != "" {
		cfg.Runtime.Endpoint = endpoint
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := runtime.NewRPCClient(ctx, cfg.Runtime.Endpoint, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("连接合约运行时失败: %w", err)
	}

	// MEV保护通道使用独立端点
	var protected runtime.Client
	if cfg.MEV.Enabled && cfg.MEV.Endpoint != "" {
		protected, err = runtime.NewRPCClient(ctx, cfg.MEV.Endpoint, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("连接MEV保护通道失败: %w", err)
		}
	}

	eng, err := engine.New(cfg, client, protected, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化引擎失败: %w", err)
	}

	// 尝试恢复注册表快照
	if cfg.Engine.SnapshotPath != "" {
		if _, err := eng.Registry().LoadSnapshot(cfg.Engine.SnapshotPath); err != nil {
			logger.Warnf("恢复注册表快照失败: %v", err)
		}
	}

	return cfg, eng, logger, nil
}

// runServe 常驻模式：启动管理API并等待停机信号
func runServe(cmd *cobra.Command, args []string) error {
	cfg, eng, logger, err := setup()
	if err != nil {
		return err
	}

	gs := shutdown.NewGracefulShutdown(30*time.Second, logger)

	if cfg.API.Enabled {
		server := api.NewServer(eng, logger, cfg.API.Port)
		if err := server.Start(); err != nil {
			return fmt.Errorf("启动管理API失败: %w", err)
		}
		gs.Register("api_server", server.Stop, 10)
	}

	gs.Register("registry_snapshot", func(ctx context.Context) error {
		if cfg.Engine.SnapshotPath == "" {
			return nil
		}
		return eng.Registry().SaveSnapshot(cfg.Engine.SnapshotPath)
	}, 20)

	gs.Register("engine", func(ctx context.Context) error {
		return eng.Close()
	}, 30)

	logger.Info("引擎已就绪，等待停机信号")
	gs.Wait()
	return nil
}

// runStats 打印引擎统计信息
func runStats(cmd *cobra.Command, args []string) error {
	_, eng, _, err := setup()
	if err != nil {
		return err
	}
	defer eng.Close()

	stats := eng.GetContractStatistics()
	fmt.Printf("已注册合约: %d\n", stats.KnownContracts)
	fmt.Printf("已验证合约: %d\n", stats.VerifiedContracts)
	fmt.Printf("缓存报价数: %d\n", stats.CachedQuotes)
	fmt.Printf("缓存gas估算数: %d\n", stats.CachedGasEstimates)
	fmt.Printf("MEV保护: %v\n", stats.MEVProtectionEnabled)
	return nil
}

// runVerify 验证合约
func runVerify(cmd *cobra.Command, args []string) error {
	_, eng, logger, err := setup()
	if err != nil {
		return err
	}
	defer eng.Close()

	address := args[0]

	// 未注册的地址先临时注册再验证
	if _, err := eng.GetContract(address); err != nil {
		if _, err := eng.RegisterContract(address, address, models.ContractTypeOther, nil); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	verified, err := eng.VerifyContract(ctx, address)
	if err != nil {
		return err
	}

	if verified {
		info, _ := eng.GetContract(address)
		logger.Infof("合约验证成功: %s (ledger %d)", address, info.DeployedAtLedger)
	} else {
		logger.Warnf("合约验证失败，链上无数据: %s", address)
	}
	return nil
}

// runQuote 查询兑换报价
func runQuote(cmd *cobra.Command, args []string) error {
	_, eng, _, err := setup()
	if err != nil {
		return err
	}
	defer eng.Close()

	amount, ok := new(big.Int).SetString(quoteAmount, 10)
	if !ok {
		return fmt.Errorf("无效的数量: %s", quoteAmount)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	quote, err := eng.GetSwapQuote(ctx, args[0], args[1], amount, quoteSlippage)
	if err != nil {
		return err
	}

	fmt.Printf("输入: %s %s\n", quote.InputAmount.String(), quote.InputAsset)
	fmt.Printf("输出: %s %s\n", quote.OutputAmount.String(), quote.OutputAsset)
	fmt.Printf("手续费: %s\n", quote.Fee.String())
	fmt.Printf("价格冲击: %.4f\n", quote.PriceImpact)
	fmt.Printf("路径: %v\n", quote.Route)
	fmt.Printf("过期时间: %s\n", quote.ExpiresAt.Format(time.RFC3339))
	return nil
}
