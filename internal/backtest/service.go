package backtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"straton/internal/logger"
	"straton/internal/types"
)

// StartRequest 是发起回测的入参。不带 Bars 时从数据源按区间拉取。
type StartRequest struct {
	Strategy    string            `json:"strategy"`
	Params      map[string]string `json:"params,omitempty"`
	Symbol      string            `json:"symbol"`
	Timeframe   string            `json:"timeframe"`
	InitialCash string            `json:"initial_cash"`
	Start       int64             `json:"start"`
	End         int64             `json:"end"`
	Bars        []types.Bar       `json:"bars,omitempty"`
}

// Service 负责回测运行的排队与落库。同时在跑的运行数有上限，
// 超出的请求直接拒绝而不是无限排队。
type Service struct {
	sim     *Simulator
	store   *ResultStore
	source  BarSource
	baseCtx context.Context

	mu      sync.Mutex
	running map[string]context.CancelFunc
	sem     chan struct{}
}

func NewService(ctx context.Context, sim *Simulator, store *ResultStore, source BarSource, maxConcurrent int) (*Service, error) {
	if sim == nil || store == nil {
		return nil, fmt.Errorf("simulator/store 不能为空")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Service{
		sim:     sim,
		store:   store,
		source:  source,
		baseCtx: ctx,
		running: make(map[string]context.CancelFunc),
		sem:     make(chan struct{}, maxConcurrent),
	}, nil
}

// StartRun 登记一条运行并异步执行，返回 run id。
func (s *Service) StartRun(req StartRequest) (string, error) {
	if req.Strategy == "" || req.Symbol == "" {
		return "", fmt.Errorf("strategy/symbol 不能为空")
	}
	if req.InitialCash == "" {
		req.InitialCash = "10000"
	}
	if req.Timeframe == "" {
		req.Timeframe = "1h"
	}
	tf, err := ParseTimeframe(req.Timeframe)
	if err != nil {
		return "", fmt.Errorf("不支持的周期 %s（可用: %s）", req.Timeframe, strings.Join(SupportedTimeframes(), ", "))
	}
	if len(req.Bars) == 0 && s.source == nil {
		return "", fmt.Errorf("未提供 bars 且没有配置数据源")
	}

	select {
	case s.sem <- struct{}{}:
	default:
		return "", fmt.Errorf("并发回测数已达上限")
	}

	cfg := RunConfig{
		RunID:       uuid.NewString(),
		Strategy:    req.Strategy,
		Params:      req.Params,
		Symbol:      req.Symbol,
		Timeframe:   tf.Key,
		InitialCash: req.InitialCash,
		Bars:        req.Bars,
	}
	if _, err := s.store.CreateRun(cfg); err != nil {
		<-s.sem
		return "", err
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.running[cfg.RunID] = cancel
	s.mu.Unlock()

	go s.execute(runCtx, cfg, req)
	return cfg.RunID, nil
}

func (s *Service) execute(ctx context.Context, cfg RunConfig, req StartRequest) {
	defer func() {
		<-s.sem
		s.mu.Lock()
		delete(s.running, cfg.RunID)
		s.mu.Unlock()
	}()

	if err := s.store.MarkRunning(cfg.RunID); err != nil {
		logger.Warnf("[backtest] mark running %s: %v", cfg.RunID, err)
	}

	if len(cfg.Bars) == 0 {
		// 内部周期与数据源 interval 不一定同名（如 7d 对应 1w），
		// 拉取区间先对齐到周期网格。
		tf, err := ParseTimeframe(cfg.Timeframe)
		if err != nil {
			s.fail(cfg.RunID, err)
			return
		}
		start, end := tf.AlignRange(req.Start, req.End)
		bars, err := s.source.Fetch(ctx, FetchRequest{
			Symbol:   cfg.Symbol,
			Interval: tf.SourceInterval,
			Start:    start,
			End:      end,
		})
		if err != nil {
			s.fail(cfg.RunID, fmt.Errorf("fetch bars: %w", err))
			return
		}
		if want := tf.ExpectedCandles(start, end); start > 0 && int64(len(bars)) < want {
			logger.Warnf("[backtest] run %s: fetched %d bars, expected %d for range", cfg.RunID, len(bars), want)
		}
		cfg.Bars = bars
	}

	result, err := s.sim.Run(ctx, cfg)
	if err != nil {
		s.fail(cfg.RunID, err)
		return
	}
	if err := s.store.Complete(cfg.RunID, result); err != nil {
		logger.Errorf("[backtest] persist run %s: %v", cfg.RunID, err)
	}
}

func (s *Service) fail(id string, err error) {
	logger.Errorf("[backtest] run %s failed: %v", id, err)
	if serr := s.store.Fail(id, err.Error()); serr != nil {
		logger.Warnf("[backtest] mark failed %s: %v", id, serr)
	}
}

// CancelRun 取消一条在跑的运行。
func (s *Service) CancelRun(id string) bool {
	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// GetRun / ListRuns 直接透传存储层。
func (s *Service) GetRun(id string) (*RunModel, error)    { return s.store.GetRun(id) }
func (s *Service) ListRuns(limit int) ([]RunModel, error) { return s.store.ListRuns(limit) }
