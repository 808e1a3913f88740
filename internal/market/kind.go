package market

import (
	"strings"
	"time"
)

// Kind 表示标的所属市场。
type Kind string

const (
	KindAShare  Kind = "A_STOCK"
	KindUSStock Kind = "US_STOCK"
	KindHKStock Kind = "HK_STOCK"
	KindCrypto  Kind = "CRYPTO"
	KindUnknown Kind = "UNKNOWN"
)

var kindTimezones = map[Kind]string{
	KindAShare:  "Asia/Shanghai",
	KindUSStock: "America/New_York",
	KindHKStock: "Asia/Hong_Kong",
	KindCrypto:  "UTC",
}

// Location 返回市场时区，未知市场按 UTC 处理。
func (k Kind) Location() *time.Location {
	name, ok := kindTimezones[k]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindAShare:
		return KindAShare, true
	case KindUSStock:
		return KindUSStock, true
	case KindHKStock:
		return KindHKStock, true
	case KindCrypto:
		return KindCrypto, true
	}
	return KindUnknown, false
}

// DetectKind 从标的后缀推断市场。交易对形式（BTCUSDT）视为加密市场，
// BTC.USDT 这类写法也按加密处理。
func DetectKind(symbol string) Kind {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return KindUnknown
	}
	if idx := strings.LastIndex(symbol, "."); idx >= 0 {
		switch strings.ToUpper(symbol[idx+1:]) {
		case "XSHE", "XSHG":
			return KindAShare
		case "US":
			return KindUSStock
		case "HK":
			return KindHKStock
		case "USDT":
			return KindCrypto
		}
	}
	return KindCrypto
}

// ResolveKind 决定调度用的市场：显式配置 > 标的后缀 > 默认加密。
// 默认加密的理由：对 7x24 交易的资产漏掉一个交易日比对股票多跑一次更糟。
func ResolveKind(symbol, explicit string) Kind {
	if explicit != "" {
		if kind, ok := ParseKind(explicit); ok {
			return kind
		}
	}
	kind := DetectKind(symbol)
	if kind == KindUnknown {
		return KindCrypto
	}
	return kind
}
