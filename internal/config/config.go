package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"straton/internal/market"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Backtest BacktestConfig `mapstructure:"backtest"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type EngineConfig struct {
	// ToleranceMinutes 为周期回调的时间匹配容差。
	ToleranceMinutes int `mapstructure:"tolerance_minutes"`
}

type StrategyConfig struct {
	Name   string            `mapstructure:"name"`
	Params map[string]string `mapstructure:"params"`
}

type CalendarConfig struct {
	// File 为节假日覆盖文件（YAML），为空时使用内置日历。
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

type FeedConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Symbols     []string `mapstructure:"symbols"`
	Timeframes  []string `mapstructure:"timeframes"`
	CacheSize   int      `mapstructure:"cache_size"`
	MaxAttempts int      `mapstructure:"max_attempts"`
}

type BacktestConfig struct {
	DBPath        string `mapstructure:"db_path"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	SourceBaseURL string `mapstructure:"source_base_url"`
}

// Load 读取并校验配置。path 为空时只用默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8087")
	v.SetDefault("engine.tolerance_minutes", market.DefaultToleranceMinutes)
	v.SetDefault("strategy.name", "double_ma")
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.cache_size", 1000)
	v.SetDefault("feed.max_attempts", 10)
	v.SetDefault("backtest.db_path", "data/backtest.db")
	v.SetDefault("backtest.max_concurrent", 2)
}

func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 非法: %q", cfg.Log.Level)
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr 不能为空")
	}
	if cfg.Engine.ToleranceMinutes <= 0 {
		return fmt.Errorf("engine.tolerance_minutes 必须为正: %d", cfg.Engine.ToleranceMinutes)
	}
	if cfg.Strategy.Name == "" {
		return fmt.Errorf("strategy.name 不能为空")
	}
	if cfg.Feed.Enabled && len(cfg.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.enabled 时 feed.symbols 不能为空")
	}
	if cfg.Backtest.MaxConcurrent <= 0 {
		return fmt.Errorf("backtest.max_concurrent 必须为正: %d", cfg.Backtest.MaxConcurrent)
	}
	return nil
}
