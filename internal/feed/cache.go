package feed

import (
	"strings"
	"sync"
	"time"

	"straton/internal/types"
)

const DefaultCacheCapacity = 1000

// Cache 是按 (symbol, timeframe) 分桶的有界 K 线缓存。
// 写入方是行情推流（流式客户端），读取方是 HTTP 查询接口；达到容量后淘汰最旧一根。
type Cache struct {
	mu       sync.RWMutex
	capacity int
	buckets  map[string]*bucket
}

type bucket struct {
	bars      []types.Bar
	updatedAt time.Time
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		buckets:  make(map[string]*bucket),
	}
}

func cacheKey(symbol, timeframe string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + strings.ToLower(strings.TrimSpace(timeframe))
}

// Add 写入一根 K 线。open_time 与桶尾相同视为同一根的更新，就地替换。
func (c *Cache) Add(symbol, timeframe string, bar types.Bar) {
	key := cacheKey(symbol, timeframe)
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{}
		c.buckets[key] = b
	}
	if n := len(b.bars); n > 0 && b.bars[n-1].OpenTime == bar.OpenTime {
		b.bars[n-1] = bar
	} else {
		b.bars = append(b.bars, bar)
		if len(b.bars) > c.capacity {
			b.bars = b.bars[len(b.bars)-c.capacity:]
		}
	}
	b.updatedAt = time.Now()
}

// Bars 返回最近 count 根（count<=0 表示全部），旧在前。
func (c *Cache) Bars(symbol, timeframe string, count int) []types.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[cacheKey(symbol, timeframe)]
	if !ok {
		return nil
	}
	bars := b.bars
	if count > 0 && count < len(bars) {
		bars = bars[len(bars)-count:]
	}
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	return out
}

func (c *Cache) Latest(symbol, timeframe string) (types.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[cacheKey(symbol, timeframe)]
	if !ok || len(b.bars) == 0 {
		return types.Bar{}, false
	}
	return b.bars[len(b.bars)-1], true
}

func (c *Cache) LastUpdate(symbol, timeframe string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[cacheKey(symbol, timeframe)]
	if !ok {
		return time.Time{}, false
	}
	return b.updatedAt, true
}

func (c *Cache) Size(symbol, timeframe string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[cacheKey(symbol, timeframe)]
	if !ok {
		return 0
	}
	return len(b.bars)
}

// Clear 清空某个桶；symbol 为空则清空全部。
func (c *Cache) Clear(symbol, timeframe string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(symbol) == "" {
		c.buckets = make(map[string]*bucket)
		return
	}
	delete(c.buckets, cacheKey(symbol, timeframe))
}
