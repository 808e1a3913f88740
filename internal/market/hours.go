package market

import "time"

// TimePoint 为交易日内的逻辑时刻名。
type TimePoint string

const (
	PointBeforeOpen TimePoint = "before_open"
	PointOpen       TimePoint = "open"
	PointClose      TimePoint = "close"
	PointAfterClose TimePoint = "after_close"
)

// DefaultToleranceMinutes 是时间匹配的默认容差（分钟）。
const DefaultToleranceMinutes = 30

type clockTime struct {
	hour   int
	minute int
}

// 各市场本地交易时刻表。加密市场为全天（逻辑时刻）。
var tradingHours = map[Kind]map[TimePoint]clockTime{
	KindAShare: {
		PointBeforeOpen: {9, 25},
		PointOpen:       {9, 30},
		PointClose:      {15, 0},
		PointAfterClose: {15, 5},
	},
	KindUSStock: {
		PointBeforeOpen: {9, 25},
		PointOpen:       {9, 30},
		PointClose:      {16, 0},
		PointAfterClose: {16, 5},
	},
	KindHKStock: {
		PointBeforeOpen: {9, 25},
		PointOpen:       {9, 30},
		PointClose:      {16, 0},
		PointAfterClose: {16, 5},
	},
	KindCrypto: {
		PointBeforeOpen: {0, 0},
		PointOpen:       {0, 0},
		PointClose:      {23, 59},
		PointAfterClose: {23, 59},
	},
}

// LocalTime 把 UTC 时刻转到市场本地时区。
func LocalTime(utcNow time.Time, kind Kind) time.Time {
	return utcNow.In(kind.Location())
}

// TargetTime 返回 point 在「今天」（市场本地日历日）对应的时刻。
// 未知 point 返回 false：配置错误的调度静默失效而不是报错。
func TargetTime(utcNow time.Time, kind Kind, point TimePoint) (time.Time, bool) {
	hours, ok := tradingHours[kind]
	if !ok {
		return time.Time{}, false
	}
	ct, ok := hours[point]
	if !ok {
		return time.Time{}, false
	}
	local := LocalTime(utcNow, kind)
	target := time.Date(local.Year(), local.Month(), local.Day(), ct.hour, ct.minute, 0, 0, local.Location())
	return target, true
}

// IsTimeMatch 判断当前时刻与 point 的偏差是否在容差内（分钟，闭区间）。
func IsTimeMatch(utcNow time.Time, kind Kind, point TimePoint, toleranceMinutes int) bool {
	target, ok := TargetTime(utcNow, kind, point)
	if !ok {
		return false
	}
	local := LocalTime(utcNow, kind)
	diff := local.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}
