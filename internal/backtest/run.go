package backtest

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 记录本次回测的参数快照，便于重放。
type RunConfig struct {
	Symbol         string         `json:"symbol"`
	Strategy       string         `json:"strategy"`
	Params         map[string]any `json:"params,omitempty"`
	Timeframe      string         `json:"timeframe"`
	StartTS        int64          `json:"start_ts"`
	EndTS          int64          `json:"end_ts"`
	InitialCapital float64        `json:"initial_capital"`
	CommissionRate float64        `json:"commission_rate"`
	SlippageRate   float64        `json:"slippage_rate"`
	MinCommission  float64        `json:"min_commission"`
	LotSize        int64          `json:"lot_size"`
}

// Costs 返回本次回测的成本模型。
func (c RunConfig) Costs() CostModel {
	return CostModel{
		CommissionRate: c.CommissionRate,
		SlippageRate:   c.SlippageRate,
		MinCommission:  c.MinCommission,
	}
}

// RunStats 汇总一次回测的运行统计，供列表页展示。
// 完整的绩效指标契约由 metrics 包基于资金曲线和成交记录计算。
type RunStats struct {
	FinalValue     float64   `json:"final_value"`
	Profit         float64   `json:"profit"`
	ReturnPct      float64   `json:"return_pct"`
	WinRate        float64   `json:"win_rate"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Orders         int       `json:"orders"`
	Trades         int       `json:"trades"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	Snapshots      int       `json:"snapshots"`
	EquityPeak     float64   `json:"equity_peak"`
	EquityValley   float64   `json:"equity_valley"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Run 表示一次回测任务。
type Run struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	Status         string    `json:"status"`
	StartTS        int64     `json:"start_ts"`
	EndTS          int64     `json:"end_ts"`
	Timeframe      string    `json:"timeframe"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	Message        string    `json:"message"`
	Config         RunConfig `json:"config"`
	Stats          RunStats  `json:"stats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// MarshalConfig 返回 config JSON。
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest 为 HTTP 提交使用；缺省字段回落到配置默认。
// 费率字段用指针区分「未填」与「显式 0」：传 0 即为零成本回测。
type RunRequest struct {
	Symbol         string         `json:"symbol" binding:"required"`
	Strategy       string         `json:"strategy"`
	Params         map[string]any `json:"params"`
	Timeframe      string         `json:"timeframe"`
	StartTS        int64          `json:"start_ts" binding:"required"`
	EndTS          int64          `json:"end_ts" binding:"required"`
	InitialCapital float64        `json:"initial_capital"`
	CommissionRate *float64       `json:"commission_rate"`
	SlippageRate   *float64       `json:"slippage_rate"`
	MinCommission  *float64       `json:"min_commission"`
	LotSize        int64          `json:"lot_size"`
}
