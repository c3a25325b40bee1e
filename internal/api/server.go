package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sorotrade/internal/engine"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server 管理API服务器
// 只暴露引擎的只读路径，用于运维侧的状态巡检
type Server struct {
	engine     *engine.Engine
	logger     *logrus.Logger
	logManager *LogManager
	server     *http.Server
	port       int
}

// NewServer 创建管理API服务器
func NewServer(eng *engine.Engine, logger *logrus.Logger, port int) *Server {
	// 创建日志管理器并挂接钩子
	logManager := NewLogManager(1000)
	logger.AddHook(NewLogHook(logManager))

	return &Server{
		engine:     eng,
		logger:     logger,
		logManager: logManager,
		port:       port,
	}
}

// Start 启动HTTP服务
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.GET("/contracts", s.handleContracts)
	router.GET("/pools", s.handlePools)
	router.GET("/logs", s.handleLogs)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Infof("管理API服务器启动，端口: %d", s.port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("管理API服务器异常退出: %v", err)
		}
	}()

	return nil
}

// Stop 停止HTTP服务
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleHealth 运行时健康检查
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := s.engine.Health(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        status.Status,
		"latest_ledger": status.LatestLedger,
	})
}

// handleStats 引擎聚合统计
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetContractStatistics())
}

// handleContracts 已注册合约列表
func (s *Server) handleContracts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contracts": s.engine.Registry().All(),
	})
}

// handlePools 已知流动性池列表
func (s *Server) handlePools(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	pools, err := s.engine.GetLiquidityPools(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pools": pools})
}

// handleLogs 最近日志
func (s *Server) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"logs": s.logManager.Recent(200),
	})
}
