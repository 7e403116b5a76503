package backtest

import "time"

// Position 表示某个 symbol 的当前多头持仓。
// 数量恒大于零；清零的持仓直接从账本移除，不保留空记录。
type Position struct {
	Symbol          string    `json:"symbol"`
	Quantity        int64     `json:"quantity"`
	EntryPrice      float64   `json:"entry_price"` // 成交量加权平均成本
	EntryDate       time.Time `json:"entry_date"`
	Direction       string    `json:"direction"` // 仅支持 long
	EntryCommission float64   `json:"entry_commission"`
}

// Account 是一个策略实例独占的资金与持仓账本。
// 不允许跨 goroutine 共享：并发模型保证每个账本只有一个所有者。
type Account struct {
	Cash      float64
	Allocated float64
	positions map[string]*Position
}

func NewAccount(capital float64) *Account {
	return &Account{
		Cash:      capital,
		Allocated: capital,
		positions: make(map[string]*Position),
	}
}

// Position 返回 symbol 的持仓；不存在时返回 nil。
func (a *Account) Position(symbol string) *Position {
	return a.positions[symbol]
}

// HasPosition 判断 symbol 是否有持仓。
func (a *Account) HasPosition(symbol string) bool {
	_, ok := a.positions[symbol]
	return ok
}

// PositionCount 返回持仓 symbol 数。
func (a *Account) PositionCount() int {
	return len(a.positions)
}

// Symbols 返回当前持仓的 symbol 列表（无序）。
func (a *Account) Symbols() []string {
	out := make([]string, 0, len(a.positions))
	for sym := range a.positions {
		out = append(out, sym)
	}
	return out
}

// MarketValue 以给定价格对所有持仓做市值计算。
// prices 缺失的 symbol 按零计入——调用方必须为每个持仓提供价格。
func (a *Account) MarketValue(prices map[string]float64) float64 {
	total := 0.0
	for sym, pos := range a.positions {
		total += float64(pos.Quantity) * prices[sym]
	}
	return total
}

// setPosition/removePosition 仅供执行器在一次原子执行内调用。
func (a *Account) setPosition(pos *Position) {
	a.positions[pos.Symbol] = pos
}

func (a *Account) removePosition(symbol string) {
	delete(a.positions, symbol)
}
