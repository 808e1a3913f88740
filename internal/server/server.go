package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"straton/internal/backtest"
	"straton/internal/feed"
	"straton/internal/logger"
	"straton/internal/strategy"
	"straton/internal/types"
)

// Executor 抽象策略引擎，便于测试替换。
type Executor interface {
	Execute(req types.ExecRequest) types.ExecResponse
}

// Server 暴露执行入口与回测管理 API。
type Server struct {
	addr      string
	executor  Executor
	backtest  *backtest.Service
	stream    *feed.Stream
	feedCache *feed.Cache
	router    *gin.Engine
	httpSrv   *http.Server
}

// Config 描述 HTTP Server 的依赖。Backtest、Stream 与 Feed 可选。
type Config struct {
	Addr     string
	Executor Executor
	Backtest *backtest.Service
	Stream   *feed.Stream
	Feed     *feed.Cache
}

func New(cfg Config) (*Server, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8087"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:      cfg.Addr,
		executor:  cfg.Executor,
		backtest:  cfg.Backtest,
		stream:    cfg.Stream,
		feedCache: cfg.Feed,
		router:    router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.POST("/exec", s.handleExec)
	api.GET("/strategies", s.handleStrategies)

	if s.backtest != nil {
		bt := api.Group("/backtest")
		bt.POST("/runs", s.handleRunStart)
		bt.GET("/runs", s.handleRunList)
		bt.GET("/runs/:id", s.handleRunDetail)
		bt.GET("/runs/:id/fills", s.handleRunFills)
		bt.DELETE("/runs/:id", s.handleRunCancel)
	}
	if s.stream != nil {
		api.GET("/feed/stats", s.handleFeedStats)
	}
	if s.feedCache != nil {
		api.GET("/feed/bars", s.handleFeedBars)
	}
}

// Run 启动 HTTP 服务并在 ctx 取消时优雅退出。
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[server] listening on %s", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler 暴露路由，测试用。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleExec(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	if err := compiledExecSchema.Validate(generic); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req types.ExecRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := s.executor.Execute(req)
	status := http.StatusOK
	if resp.Status == types.ExecFailed {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Names()})
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.backtest.StartRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.backtest.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.backtest.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleRunFills(c *gin.Context) {
	run, err := s.backtest.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(run.Result) == 0 {
		c.JSON(http.StatusOK, gin.H{"fills": []backtest.Fill{}})
		return
	}
	var result backtest.Result
	if err := json.Unmarshal(run.Result, &result); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": result.Fills})
}

func (s *Server) handleRunCancel(c *gin.Context) {
	if !s.backtest.CancelRun(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": true})
}

func (s *Server) handleFeedStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stream.Stats())
}

// handleFeedBars 读取行情缓存，供策略外的消费方查最近 K 线。
func (s *Server) handleFeedBars(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1h")
	count, _ := strconv.Atoi(c.DefaultQuery("count", "100"))

	bars := s.feedCache.Bars(symbol, timeframe, count)
	resp := gin.H{
		"symbol":    symbol,
		"timeframe": timeframe,
		"count":     len(bars),
		"bars":      bars,
	}
	if latest, ok := s.feedCache.Latest(symbol, timeframe); ok {
		resp["latest_close"] = latest.Close
	}
	if ts, ok := s.feedCache.LastUpdate(symbol, timeframe); ok {
		resp["last_update"] = ts.UnixMilli()
	}
	c.JSON(http.StatusOK, resp)
}
