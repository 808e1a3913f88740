package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"straton/internal/logger"
	"straton/internal/types"

	"github.com/adshao/go-binance/v2"
)

// ConnState 是推流连接状态。
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateFailed // 重连次数用尽后的终态
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type StreamConfig struct {
	Symbols     []string
	Timeframes  []string
	MaxAttempts int           // 连续重连上限，超过后进入 StateFailed
	BaseDelay   time.Duration // 退避起始间隔
	MaxDelay    time.Duration // 退避上限
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Stats 为推流的运行统计。
type Stats struct {
	Reconnects int
	LastError  string
	State      ConnState
}

// Stream 订阅币安现货 K 线推送并写入有界缓存。断线按上限封顶的指数退避重连，
// 连续失败超过 MaxAttempts 后进入终态而不是无限重试。
type Stream struct {
	cfg   StreamConfig
	cache *Cache

	OnStateChange func(ConnState)

	mu     sync.Mutex
	cancel context.CancelFunc

	statsMu sync.Mutex
	stats   Stats
}

func NewStream(cfg StreamConfig, cache *Cache) (*Stream, error) {
	if cache == nil {
		return nil, fmt.Errorf("feed stream requires a cache")
	}
	if len(cfg.Symbols) == 0 || len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("feed stream requires symbols & timeframes")
	}
	return &Stream{cfg: cfg.withDefaults(), cache: cache}, nil
}

func (s *Stream) Start(ctx context.Context) error {
	// combined stream 的 symbol→interval 映射一个 symbol 只能挂一个 interval，
	// 多周期按 timeframe 平铺成多个订阅循环。
	var mappings []map[string]string
	for _, tf := range s.cfg.Timeframes {
		tf = strings.ToLower(strings.TrimSpace(tf))
		if tf == "" {
			continue
		}
		mapping := make(map[string]string)
		for _, sym := range s.cfg.Symbols {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" {
				continue
			}
			mapping[sym] = tf
		}
		if len(mapping) > 0 {
			mappings = append(mappings, mapping)
		}
	}
	if len(mappings) == 0 {
		return fmt.Errorf("no valid stream subscriptions")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	for _, mapping := range mappings {
		go s.run(runCtx, mapping)
	}
	logger.Infof("[feed] 订阅已启动 symbols=%v timeframes=%v", s.cfg.Symbols, s.cfg.Timeframes)
	return nil
}

func (s *Stream) run(ctx context.Context, mapping map[string]string) {
	delay := s.cfg.BaseDelay
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		var errMu sync.Mutex
		var lastErr error
		handler := func(event *binance.WsKlineEvent) {
			if event == nil {
				return
			}
			bar, symbol, tf, ok := convertKlineEvent(event)
			if !ok {
				return
			}
			s.cache.Add(symbol, tf, bar)
		}
		errHandler := func(err error) {
			if err == nil {
				return
			}
			errMu.Lock()
			lastErr = err
			errMu.Unlock()
		}

		doneC, stopC, err := binance.WsCombinedKlineServe(mapping, handler, errHandler)
		if err != nil {
			attempts++
			s.recordFailure(err)
			if attempts >= s.cfg.MaxAttempts {
				s.enterFailed(err)
				return
			}
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay, s.cfg.MaxDelay)
			continue
		}

		attempts = 0
		delay = s.cfg.BaseDelay
		s.setState(StateConnected)

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		close(stopC)

		errMu.Lock()
		errCopy := lastErr
		errMu.Unlock()
		attempts++
		s.recordReconnect(errCopy)
		if attempts >= s.cfg.MaxAttempts {
			s.enterFailed(errCopy)
			return
		}
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay, s.cfg.MaxDelay)
	}
}

func (s *Stream) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Stream) State() ConnState {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats.State
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *Stream) setState(state ConnState) {
	s.statsMu.Lock()
	changed := s.stats.State != state
	s.stats.State = state
	s.statsMu.Unlock()
	if changed && s.OnStateChange != nil {
		s.OnStateChange(state)
	}
}

func (s *Stream) recordFailure(err error) {
	s.statsMu.Lock()
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
	s.setState(StateDisconnected)
}

func (s *Stream) recordReconnect(err error) {
	s.statsMu.Lock()
	s.stats.Reconnects++
	if err != nil && err.Error() != "" {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
	s.setState(StateDisconnected)
	if err != nil {
		logger.Warnf("[feed] 连接断开: %v", err)
	}
}

func (s *Stream) enterFailed(err error) {
	if err != nil {
		logger.Errorf("[feed] 重连次数用尽，进入终态: %v", err)
	} else {
		logger.Errorf("[feed] 重连次数用尽，进入终态")
	}
	s.setState(StateFailed)
}

func convertKlineEvent(ev *binance.WsKlineEvent) (types.Bar, string, string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(ev.Symbol))
	tf := strings.ToLower(strings.TrimSpace(ev.Kline.Interval))
	if symbol == "" || tf == "" {
		return types.Bar{}, "", "", false
	}
	bar := types.Bar{
		OpenTime:  ev.Kline.StartTime,
		CloseTime: ev.Kline.EndTime,
		Open:      ev.Kline.Open,
		High:      ev.Kline.High,
		Low:       ev.Kline.Low,
		Close:     ev.Kline.Close,
		Volume:    ev.Kline.Volume,
	}
	return bar, symbol, tf, true
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
