package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"straton/internal/backtest"
	"straton/internal/config"
	"straton/internal/engine"
	"straton/internal/feed"
	"straton/internal/logger"
	"straton/internal/market"
	"straton/internal/schedule"
	"straton/internal/server"
	"straton/internal/strategy"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 与行情服务。
type App struct {
	cfg      *config.Config
	calendar *market.Calendar
	engine   *engine.Engine
	btStore  *backtest.ResultStore
	btSvc    *backtest.Service
	stream   *feed.Stream
	httpSrv  *server.Server
}

// New 根据配置构建应用对象（不启动）。依赖按自下而上的顺序显式装配。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.Log.Level)

	calendar := market.NewCalendar()
	if cfg.Calendar.File != "" {
		if err := calendar.LoadFile(cfg.Calendar.File); err != nil {
			return nil, fmt.Errorf("loading calendar failed: %w", err)
		}
	}

	registry := schedule.NewRegistry(calendar, cfg.Engine.ToleranceMinutes)
	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(strat, engine.WithScheduler(registry, registry))
	if err != nil {
		return nil, err
	}

	btStore, err := backtest.NewResultStore(cfg.Backtest.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening backtest store failed: %w", err)
	}
	sim := backtest.NewSimulator(calendar, cfg.Engine.ToleranceMinutes)
	btSvc, err := backtest.NewService(ctx, sim, btStore,
		backtest.NewBinanceSource(cfg.Backtest.SourceBaseURL), cfg.Backtest.MaxConcurrent)
	if err != nil {
		return nil, err
	}

	var stream *feed.Stream
	var cache *feed.Cache
	if cfg.Feed.Enabled {
		cache = feed.NewCache(cfg.Feed.CacheSize)
		stream, err = feed.NewStream(feed.StreamConfig{
			Symbols:     cfg.Feed.Symbols,
			Timeframes:  cfg.Feed.Timeframes,
			MaxAttempts: cfg.Feed.MaxAttempts,
		}, cache)
		if err != nil {
			return nil, fmt.Errorf("building feed stream failed: %w", err)
		}
	}

	httpSrv, err := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		Executor: eng,
		Backtest: btSvc,
		Stream:   stream,
		Feed:     cache,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		calendar: calendar,
		engine:   eng,
		btStore:  btStore,
		btSvc:    btSvc,
		stream:   stream,
		httpSrv:  httpSrv,
	}, nil
}

// Run 启动各服务，任一出错则整体退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.btStore.Close()

	if a.cfg.Calendar.Watch && a.cfg.Calendar.File != "" {
		if err := config.WatchCalendar(ctx, a.calendar, a.cfg.Calendar.File); err != nil {
			return fmt.Errorf("calendar watch failed: %w", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Run(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.stream != nil {
		group.Go(func() error {
			defer a.stream.Close()
			if err := a.stream.Start(ctx); err != nil {
				return fmt.Errorf("feed stream error: %w", err)
			}
			<-ctx.Done()
			return nil
		})
	}

	logger.Infof("straton started: strategy=%s addr=%s feed=%v",
		a.cfg.Strategy.Name, a.cfg.Server.Addr, a.cfg.Feed.Enabled)
	return group.Wait()
}

// Engine 暴露底层引擎实例（回放与测试用）。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
