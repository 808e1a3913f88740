package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunModel 对应 backtest_runs 表，配置与结果以 JSON 形式落库。
type RunModel struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Strategy    string         `gorm:"column:strategy;index" json:"strategy"`
	Symbol      string         `gorm:"column:symbol;index" json:"symbol"`
	Timeframe   string         `gorm:"column:timeframe" json:"timeframe"`
	Status      RunStatus      `gorm:"column:status;index" json:"status"`
	InitialCash string         `gorm:"column:initial_cash" json:"initial_cash"`
	FinalEquity string         `gorm:"column:final_equity" json:"final_equity"`
	ReturnPct   float64        `gorm:"column:return_pct" json:"return_pct"`
	Fills       int            `gorm:"column:fills" json:"fills"`
	Dropped     int            `gorm:"column:dropped" json:"dropped"`
	Config      datatypes.JSON `gorm:"column:config_json" json:"config"`
	Result      datatypes.JSON `gorm:"column:result_json" json:"result,omitempty"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	CreatedAt   int64          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   int64          `gorm:"column:updated_at" json:"updated_at"`
}

func (RunModel) TableName() string { return "backtest_runs" }

// ResultStore 用 Gorm + SQLite 持久化回测运行记录。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：保留少量并发给 HTTP 查询
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun 登记一条待执行的回测。
func (s *ResultStore) CreateRun(cfg RunConfig) (*RunModel, error) {
	confJSON, err := json.Marshal(map[string]any{
		"strategy":     cfg.Strategy,
		"params":       cfg.Params,
		"symbol":       cfg.Symbol,
		"timeframe":    cfg.Timeframe,
		"initial_cash": cfg.InitialCash,
		"bars":         len(cfg.Bars),
	})
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	run := &RunModel{
		ID:          cfg.RunID,
		Strategy:    cfg.Strategy,
		Symbol:      cfg.Symbol,
		Timeframe:   cfg.Timeframe,
		Status:      RunStatusPending,
		InitialCash: cfg.InitialCash,
		Config:      datatypes.JSON(confJSON),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *ResultStore) MarkRunning(id string) error {
	return s.updateStatus(id, RunStatusRunning, "")
}

// Complete 落库回测结果。
func (s *ResultStore) Complete(id string, result *Result) error {
	resJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.db.Model(&RunModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":       RunStatusCompleted,
		"final_equity": result.FinalEquity,
		"return_pct":   result.ReturnPct,
		"fills":        len(result.Fills),
		"dropped":      result.DroppedOrders,
		"result_json":  datatypes.JSON(resJSON),
		"updated_at":   time.Now().UnixMilli(),
	}).Error
}

func (s *ResultStore) Fail(id string, msg string) error {
	return s.updateStatus(id, RunStatusFailed, msg)
}

func (s *ResultStore) updateStatus(id string, status RunStatus, msg string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UnixMilli(),
	}
	if msg != "" {
		updates["message"] = msg
	}
	return s.db.Model(&RunModel{}).Where("id = ?", id).Updates(updates).Error
}

// GetRun 返回单条运行记录，不存在时返回 gorm.ErrRecordNotFound。
func (s *ResultStore) GetRun(id string) (*RunModel, error) {
	var run RunModel
	if err := s.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按创建时间倒序返回最近的运行记录。
func (s *ResultStore) ListRuns(limit int) ([]RunModel, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []RunModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
