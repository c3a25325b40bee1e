package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// GracefulShutdown 优雅停机管理器
type GracefulShutdown struct {
	logger         *logrus.Logger
	timeout        time.Duration
	shutdownFuncs  []ShutdownFunc
	mu             sync.Mutex
	signalChan     chan os.Signal
	done           chan struct{}
	isShuttingDown bool
}

// ShutdownFunc 停机处理函数
type ShutdownFunc struct {
	Name  string
	Func  func(ctx context.Context) error
	Order int // 执行顺序，数字越小越早执行
}

// NewGracefulShutdown 创建优雅停机管理器
func NewGracefulShutdown(timeout time.Duration, logger *logrus.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second // 默认30秒超时
	}

	gs := &GracefulShutdown{
		logger:        logger,
		timeout:       timeout,
		shutdownFuncs: make([]ShutdownFunc, 0),
		signalChan:    make(chan os.Signal, 1),
		done:          make(chan struct{}),
	}

	// 监听操作系统信号
	signal.Notify(gs.signalChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	return gs
}

// Register 注册停机处理函数
func (gs *GracefulShutdown) Register(name string, fn func(ctx context.Context) error, order int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.shutdownFuncs = append(gs.shutdownFuncs, ShutdownFunc{
		Name:  name,
		Func:  fn,
		Order: order,
	})

	gs.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Wait 阻塞等待停机信号，然后按顺序执行停机处理
func (gs *GracefulShutdown) Wait() {
	sig := <-gs.signalChan
	gs.logger.Infof("收到信号 %v，开始优雅停机", sig)
	gs.Shutdown()
}

// Shutdown 执行停机流程
func (gs *GracefulShutdown) Shutdown() {
	gs.mu.Lock()
	if gs.isShuttingDown {
		gs.mu.Unlock()
		return
	}
	gs.isShuttingDown = true
	funcs := make([]ShutdownFunc, len(gs.shutdownFuncs))
	copy(funcs, gs.shutdownFuncs)
	gs.mu.Unlock()

	sort.Slice(funcs, func(i, j int) bool {
		return funcs[i].Order < funcs[j].Order
	})

	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	for _, fn := range funcs {
		gs.logger.Infof("执行停机处理: %s", fn.Name)
		if err := fn.Func(ctx); err != nil {
			gs.logger.Errorf("停机处理 %s 失败: %v", fn.Name, err)
		}
	}

	close(gs.done)
	gs.logger.Info("优雅停机完成")
}

// Done 停机完成通知
func (gs *GracefulShutdown) Done() <-chan struct{} {
	return gs.done
}
