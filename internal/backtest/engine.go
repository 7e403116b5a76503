package backtest

import (
	"fmt"
	"time"
)

// SignalPoint 是引擎的输入单元：对齐的时间、价格与信号。
// 信号取值 -1/0/+1；时间必须严格递增，乱序输入属于调用方违约。
type SignalPoint struct {
	Time   time.Time
	Price  float64
	Signal int
}

// Engine 按时间顺序回放价格/信号序列：先记录资金快照，再执行信号，
// 序列结束时对仍然持仓的 symbol 强制平仓，保证最终价值 100% 为现金。
// 单线程、同步、确定性——相同输入必然产生逐字节相同的输出。
type Engine struct {
	executor *Executor
	lot      int64

	equity []EquityPoint
}

// EngineConfig 固定一次回测的参数，运行期间不再变化。
type EngineConfig struct {
	InitialCapital float64
	Costs          CostModel
	LotSize        int64 // 0 表示不限整手
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("初始资金必须大于零")
	}
	lot := cfg.LotSize
	if lot <= 0 {
		lot = 1
	}
	return &Engine{
		executor: NewExecutor(NewAccount(cfg.InitialCapital), cfg.Costs),
		lot:      lot,
	}, nil
}

// Run 回放整个序列并返回期末现金价值。
func (e *Engine) Run(symbol string, series []SignalPoint) (float64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("symbol 不能为空")
	}
	acct := e.executor.Account()
	for _, pt := range series {
		// 先用当日价格做市值快照，再执行当日信号
		e.snapshot(symbol, pt)

		switch {
		case pt.Signal > 0:
			if acct.HasPosition(symbol) {
				continue // 已持仓时重复买入信号是 no-op，不加仓
			}
			actual := e.executor.costs.SlippagePrice(pt.Price, Buy)
			qty := SizeOrder(acct.Cash, actual, e.lot)
			if qty == 0 {
				continue // 价格太高买不起一手，静默跳过
			}
			e.executor.Execute(symbol, Buy, qty, pt.Price, pt.Time)
		case pt.Signal < 0:
			pos := acct.Position(symbol)
			if pos == nil {
				continue
			}
			e.executor.Execute(symbol, Sell, pos.Quantity, pt.Price, pt.Time)
		}
	}

	// 强制平仓：无论最后的信号是什么，按末日价格清空持仓
	if len(series) > 0 {
		last := series[len(series)-1]
		for _, sym := range acct.Symbols() {
			pos := acct.Position(sym)
			e.executor.Execute(sym, Sell, pos.Quantity, last.Price, last.Time)
		}
	}
	return acct.Cash, nil
}

func (e *Engine) snapshot(symbol string, pt SignalPoint) {
	acct := e.executor.Account()
	posValue := acct.MarketValue(map[string]float64{symbol: pt.Price})
	e.equity = append(e.equity, EquityPoint{
		Date:          pt.Time,
		Capital:       acct.Cash,
		PositionValue: posValue,
		TotalValue:    acct.Cash + posValue,
		PositionCount: acct.PositionCount(),
	})
}

// EquityCurve 返回按时间排列的资金曲线。
func (e *Engine) EquityCurve() []EquityPoint { return e.equity }

// Trades 返回平仓记录。
func (e *Engine) Trades() []Trade { return e.executor.Trades() }

// Orders 返回全部成交订单。
func (e *Engine) Orders() []Order { return e.executor.Orders() }
