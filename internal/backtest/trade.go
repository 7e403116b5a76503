package backtest

import "time"

// Trade 记录一次完整（或部分）平仓的盈亏，创建后不可变。
// PnL 只计入平仓佣金；开仓佣金在扣减现金时已经发生，
// 单独记在 EntryCommission 字段里供对账使用。
type Trade struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id,omitempty"`
	Symbol          string    `json:"symbol"`
	Direction       string    `json:"direction"`
	EntryDate       time.Time `json:"entry_date"`
	ExitDate        time.Time `json:"exit_date"`
	EntryPrice      float64   `json:"entry_price"`
	ExitPrice       float64   `json:"exit_price"`
	Quantity        int64     `json:"quantity"`
	PnL             float64   `json:"pnl"`
	Commission      float64   `json:"commission"`
	EntryCommission float64   `json:"entry_commission"`
}

// EquityPoint 是资金曲线上的一个快照，按时间追加、只增不改。
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Capital       float64   `json:"capital"`
	PositionValue float64   `json:"position_value"`
	TotalValue    float64   `json:"total_value"`
	PositionCount int       `json:"position_count"`
}

// Order 记录一次被接受的买卖动作（含开仓），供结果库回放。
type Order struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Price      float64   `json:"price"`
	Quantity   int64     `json:"quantity"`
	Notional   float64   `json:"notional"`
	Fee        float64   `json:"fee"`
	ExecutedAt time.Time `json:"executed_at"`
}
