package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"straton/internal/types"
)

// BinanceSource 基于 Binance 现货 REST /api/v3/klines。
// 行情字段保持交易所原始字符串，不做浮点转换。
type BinanceSource struct {
	baseURL string
	client  *http.Client
}

func NewBinanceSource(base string) *BinanceSource {
	if base == "" {
		base = "https://api.binance.com"
	}
	return &BinanceSource{
		baseURL: base,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error) {
	if req.Symbol == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol/interval 不能为空")
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	u, _ := url.Parse(b.baseURL)
	u.Path = "/api/v3/klines"
	q := u.Query()
	q.Set("symbol", req.Symbol)
	q.Set("interval", req.Interval)
	q.Set("limit", strconv.Itoa(limit))
	if req.Start > 0 {
		q.Set("startTime", strconv.FormatInt(req.Start, 10))
	}
	if req.End > 0 {
		q.Set("endTime", strconv.FormatInt(req.End, 10))
	}
	u.RawQuery = q.Encode()

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("binance 返回状态码 %d", resp.StatusCode)
	}
	var raw [][]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]types.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		out = append(out, types.Bar{
			OpenTime:  toInt64(row[0]),
			Open:      toString(row[1]),
			High:      toString(row[2]),
			Low:       toString(row[3]),
			Close:     toString(row[4]),
			Volume:    toString(row[5]),
			CloseTime: toInt64(row[6]),
		})
	}
	return out, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	case float64:
		return int64(t)
	default:
		return 0
	}
}
