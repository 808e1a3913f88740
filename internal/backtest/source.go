package backtest

import (
	"context"

	"straton/internal/types"
)

// FetchRequest 描述一次历史 K 线请求。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64 // Unix ms
	End      int64 // Unix ms（可选；0 表示不限制）
	Limit    int
}

// BarSource 统一不同数据源的历史 K 线拉取行为。
type BarSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error)
	Name() string
}
