package metrics

import (
	"encoding/json"
	"fmt"
	"math"

	"pulsetrader/internal/backtest"
)

// Report 是对外的指标契约：字段名与语义是下游（报表、可视化、
// HTTP 接口）依赖的稳定接口，不可改名。
type Report struct {
	InitialCapital   float64 `json:"initial_capital"`
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return"`
	TotalReturnPct   string  `json:"total_return_pct"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualReturnPct  string  `json:"annual_return_pct"`
	AnnualVolatility float64 `json:"annual_volatility"`
	AnnualVolPct     string  `json:"annual_volatility_pct"`
	SharpeRatio      float64 `json:"sharpe_ratio"`

	DrawdownStats
	WinRateStats
}

// CalculateAll 聚合全部指标。空资金曲线时 final_value 取初始资金，
// 空成交记录时胜率统计全为零——不会 panic。
func CalculateAll(equity []backtest.EquityPoint, trades []backtest.Trade, initialCapital float64) Report {
	return CalculateAllWithRate(equity, trades, initialCapital, DefaultRiskFreeRate)
}

// CalculateAllWithRate 按指定年化无风险利率计算夏普比率，其余同 CalculateAll。
func CalculateAllWithRate(equity []backtest.EquityPoint, trades []backtest.Trade, initialCapital, riskFreeRate float64) Report {
	returns := Returns(equity)
	finalValue := initialCapital
	if len(equity) > 0 {
		finalValue = equity[len(equity)-1].TotalValue
	}
	totalReturn := TotalReturn(finalValue, initialCapital)
	annualReturn := AnnualReturn(returns)
	annualVol := AnnualVolatility(returns)

	return Report{
		InitialCapital:   initialCapital,
		FinalValue:       finalValue,
		TotalReturn:      totalReturn,
		TotalReturnPct:   formatPct(totalReturn),
		AnnualReturn:     annualReturn,
		AnnualReturnPct:  formatPct(annualReturn),
		AnnualVolatility: annualVol,
		AnnualVolPct:     formatPct(annualVol),
		SharpeRatio:      SharpeRatio(returns, riskFreeRate),
		DrawdownStats:    MaxDrawdown(equity),
		WinRateStats:     WinRate(trades),
	}
}

// MarshalJSON 把 profit_factor 的 +Inf 序列化为字符串 "inf"，
// 标准库对非有限浮点会直接报错。
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	if !math.IsInf(r.ProfitFactor, 0) {
		return json.Marshal(alias(r))
	}
	sanitized := r
	sanitized.ProfitFactor = 0
	raw, err := json.Marshal(alias(sanitized))
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["profit_factor"] = json.RawMessage(`"inf"`)
	return json.Marshal(m)
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
