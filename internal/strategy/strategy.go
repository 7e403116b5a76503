// Package strategy 定义信号策略接口与编译期注册表。
// 策略只负责把价格序列映射成 -1/0/+1 信号，执行语义完全交给回测核心。
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"pulsetrader/internal/market"
)

// 信号取值约定。
const (
	SignalSell = -1
	SignalHold = 0
	SignalBuy  = 1
)

// Strategy 根据 K 线序列生成与之对齐的信号序列。
// 返回切片长度必须等于输入长度；数据不足的前段填 0。
type Strategy interface {
	Name() string
	GenerateSignals(candles []market.Candle) []int
}

// Params 是策略构造参数，来自配置文件的弱类型映射。
type Params map[string]any

// Factory 按参数构造一个策略实例。
type Factory func(params Params) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册策略构造器；重复注册视为编码错误，直接 panic。
// 用编译期注册表替代按类路径反射加载，保留"可插拔"能力。
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("strategy %q registered twice", name))
	}
	registry[name] = factory
}

// New 按名称构造策略实例。
func New(name string, params Params) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知策略: %s", name)
	}
	return factory(params)
}

// Names 返回已注册策略（排序后）。
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IntParam 从参数表读取整数，缺失或类型不符时返回默认值。
func (p Params) IntParam(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
