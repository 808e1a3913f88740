package strategy

import (
	"fmt"
	"sort"
	"sync"

	"straton/internal/engine"
)

// Factory 按参数构建一个策略实例。每个执行流一个实例，互不共享状态。
type Factory func(params map[string]string) (engine.Strategy, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register 登记一个命名策略工厂。重名直接覆盖，后注册者生效。
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New 按名字构建策略实例。
func New(name string, params map[string]string) (engine.Strategy, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q, registered: %v", name, Names())
	}
	return f(params)
}

// Names 返回所有已注册策略名（排序后）。
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
