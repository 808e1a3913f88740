package market

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Calendar 维护各市场的周末与节假日集合。加密市场 7x24，天天都是交易日。
type Calendar struct {
	markets map[Kind]*marketCalendar
}

type marketCalendar struct {
	weekends map[time.Weekday]bool
	holidays map[string]bool
}

// calendarFile 是节假日覆盖文件的格式。
type calendarFile struct {
	Markets map[string]struct {
		Weekends []string `yaml:"weekends"`
		Holidays []string `yaml:"holidays"`
	} `yaml:"markets"`
}

// NewCalendar 返回带内置节假日表的日历。
func NewCalendar() *Calendar {
	c := &Calendar{markets: make(map[Kind]*marketCalendar)}
	for kind, holidays := range defaultHolidays {
		mc := &marketCalendar{
			weekends: map[time.Weekday]bool{time.Saturday: true, time.Sunday: true},
			holidays: make(map[string]bool, len(holidays)),
		}
		for _, d := range holidays {
			mc.holidays[d] = true
		}
		c.markets[kind] = mc
	}
	return c
}

// LoadFile 用 YAML 文件覆盖指定市场的周末/节假日配置。
func (c *Calendar) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading calendar file failed: %w", err)
	}
	var file calendarFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing calendar file failed: %w", err)
	}
	for name, entry := range file.Markets {
		kind, ok := ParseKind(name)
		if !ok || kind == KindCrypto {
			continue
		}
		mc := &marketCalendar{
			weekends: make(map[time.Weekday]bool),
			holidays: make(map[string]bool, len(entry.Holidays)),
		}
		if len(entry.Weekends) == 0 {
			mc.weekends[time.Saturday] = true
			mc.weekends[time.Sunday] = true
		}
		for _, w := range entry.Weekends {
			if day, ok := parseWeekday(w); ok {
				mc.weekends[day] = true
			}
		}
		for _, d := range entry.Holidays {
			if _, err := time.Parse(dateLayout, d); err != nil {
				return fmt.Errorf("invalid holiday date %q for %s", d, name)
			}
			mc.holidays[d] = true
		}
		c.markets[kind] = mc
	}
	return nil
}

// IsTradingDay 判断 date（按市场本地日历日）是否为交易日。
func (c *Calendar) IsTradingDay(date time.Time, kind Kind) bool {
	if kind == KindCrypto {
		return true
	}
	mc, ok := c.markets[kind]
	if !ok {
		// 没有日历数据的市场按周末规则兜底
		return date.Weekday() != time.Saturday && date.Weekday() != time.Sunday
	}
	if mc.weekends[date.Weekday()] {
		return false
	}
	return !mc.holidays[date.Format(dateLayout)]
}

// TradingDays 返回 [start, end] 内的交易日（YYYY-MM-DD）。
func (c *Calendar) TradingDays(start, end time.Time, kind Kind) []string {
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d, kind) {
			days = append(days, d.Format(dateLayout))
		}
	}
	return days
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch s {
	case "Sunday", "sunday", "sun":
		return time.Sunday, true
	case "Monday", "monday", "mon":
		return time.Monday, true
	case "Tuesday", "tuesday", "tue":
		return time.Tuesday, true
	case "Wednesday", "wednesday", "wed":
		return time.Wednesday, true
	case "Thursday", "thursday", "thu":
		return time.Thursday, true
	case "Friday", "friday", "fri":
		return time.Friday, true
	case "Saturday", "saturday", "sat":
		return time.Saturday, true
	}
	return time.Sunday, false
}

// 内置 2024 节假日表，可用配置文件覆盖。
var defaultHolidays = map[Kind][]string{
	KindAShare: {
		"2024-01-01",
		"2024-02-10", "2024-02-11", "2024-02-12", "2024-02-13",
		"2024-02-14", "2024-02-15", "2024-02-16", "2024-02-17",
		"2024-04-04", "2024-04-05", "2024-04-06",
		"2024-05-01", "2024-05-02", "2024-05-03", "2024-05-04", "2024-05-05",
		"2024-06-10",
		"2024-09-15", "2024-09-16", "2024-09-17",
		"2024-10-01", "2024-10-02", "2024-10-03", "2024-10-04",
		"2024-10-05", "2024-10-06", "2024-10-07",
	},
	KindUSStock: {
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29",
		"2024-05-27", "2024-06-19", "2024-07-04", "2024-09-02",
		"2024-11-28", "2024-12-25",
	},
	KindHKStock: {
		"2024-01-01",
		"2024-02-10", "2024-02-11", "2024-02-12", "2024-02-13",
		"2024-03-29", "2024-04-01", "2024-04-04",
		"2024-05-01", "2024-05-15", "2024-06-10", "2024-07-01",
		"2024-09-18", "2024-10-01", "2024-10-11",
		"2024-12-25", "2024-12-26",
	},
}
