// Package metrics 实现绩效指标计算：收益、波动、夏普、回撤与胜率。
// 所有函数都是无副作用的纯函数，对退化输入（空序列、零方差、
// 空成交记录）返回约定的哨兵值而不是报错——"安静行情不崩溃"。
package metrics

import (
	"fmt"
	"math"
	"time"

	"pulsetrader/internal/backtest"
)

// TradingDaysPerYear 年化假设的交易日数。
const TradingDaysPerYear = 252

// DefaultRiskFreeRate 夏普比率的默认无风险利率。
const DefaultRiskFreeRate = 0.03

// Returns 计算资金曲线 total_value 的逐期百分比变化。
// 首个点没有收益率，被丢弃；不足两个点时返回空序列。
func Returns(equity []backtest.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].TotalValue
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i].TotalValue-prev)/prev)
	}
	return out
}

// TotalReturn 总收益率。
func TotalReturn(finalValue, initialCapital float64) float64 {
	if initialCapital == 0 {
		return 0
	}
	return (finalValue - initialCapital) / initialCapital
}

// AnnualReturn 年化收益率：(1+mean)^252 - 1；空序列返回 0。
func AnnualReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return math.Pow(1+mean(returns), TradingDaysPerYear) - 1
}

// AnnualVolatility 年化波动率：std×sqrt(252)；空序列返回 0。
func AnnualVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return stddev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio 夏普比率。空序列或波动率恰为零时返回 0，
// 以避免除零——这会掩盖完全无波动的正收益序列，是已知的取舍。
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	excess := mean(returns)*TradingDaysPerYear - riskFreeRate
	return excess / (sd * math.Sqrt(TradingDaysPerYear))
}

// DrawdownStats 描述最大回撤区间。
type DrawdownStats struct {
	MaxDrawdown    float64   `json:"max_drawdown"` // 取绝对值
	MaxDrawdownPct string    `json:"max_drawdown_pct"`
	PeakDate       time.Time `json:"peak_date"`
	TroughDate     time.Time `json:"trough_date"`
	PeakIndex      int       `json:"-"`
	TroughIndex    int       `json:"-"`
}

// MaxDrawdown 计算相对历史峰值的最大百分比回撤。
// 谷底取 drawdown 的 argmin（并列取最早出现）；峰值索引取
// 谷底之前（不含）drawdown 的 argmin，谷底在首位时退化为 0。
func MaxDrawdown(equity []backtest.EquityPoint) DrawdownStats {
	if len(equity) == 0 {
		return DrawdownStats{MaxDrawdownPct: formatPct(0)}
	}
	drawdown := make([]float64, len(equity))
	peak := equity[0].TotalValue
	for i, pt := range equity {
		if pt.TotalValue > peak {
			peak = pt.TotalValue
		}
		if peak != 0 {
			drawdown[i] = (pt.TotalValue - peak) / peak
		}
	}
	troughIdx := argmin(drawdown)
	peakIdx := 0
	if troughIdx > 0 {
		peakIdx = argmin(drawdown[:troughIdx])
	}
	maxDD := math.Abs(drawdown[troughIdx])
	return DrawdownStats{
		MaxDrawdown:    maxDD,
		MaxDrawdownPct: formatPct(maxDD),
		PeakDate:       equity[peakIdx].Date,
		TroughDate:     equity[troughIdx].Date,
		PeakIndex:      peakIdx,
		TroughIndex:    troughIdx,
	}
}

// WinRateStats 汇总胜率与盈亏分布。pnl==0 计为亏损而不是盈利。
type WinRateStats struct {
	WinRate       float64 `json:"win_rate"`
	WinRatePct    string  `json:"win_rate_pct,omitempty"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
}

// WinRate 统计成交记录。空记录返回全零；没有亏损但有盈利时
// profit_factor 为 +Inf。
func WinRate(trades []backtest.Trade) WinRateStats {
	if len(trades) == 0 {
		return WinRateStats{}
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else {
			losses++
			lossSum += t.PnL
		}
	}
	stats := WinRateStats{
		WinRate:       float64(wins) / float64(len(trades)),
		TotalTrades:   len(trades),
		WinningTrades: wins,
		LosingTrades:  losses,
	}
	stats.WinRatePct = fmt.Sprintf("%.1f%%", stats.WinRate*100)
	if wins > 0 {
		stats.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		stats.AvgLoss = lossSum / float64(losses)
	}
	switch {
	case losses > 0 && lossSum != 0:
		stats.ProfitFactor = math.Abs(winSum / lossSum)
	default:
		stats.ProfitFactor = math.Inf(1)
	}
	return stats
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev 是样本标准差（除以 n-1）；单元素序列定义为 0。
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// argmin 返回最小值的索引，并列时取最早出现。
func argmin(xs []float64) int {
	idx := 0
	for i, x := range xs {
		if x < xs[idx] {
			idx = i
		}
	}
	return idx
}
