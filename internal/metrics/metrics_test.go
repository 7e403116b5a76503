package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrader/internal/backtest"
)

func equityCurve(values ...float64) []backtest.EquityPoint {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]backtest.EquityPoint, len(values))
	for i, v := range values {
		out[i] = backtest.EquityPoint{Date: base.AddDate(0, 0, i), TotalValue: v}
	}
	return out
}

func TestReturns(t *testing.T) {
	rets := Returns(equityCurve(100, 110, 99))
	require.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-12)
	assert.InDelta(t, -0.10, rets[1], 1e-12)

	assert.Nil(t, Returns(nil))
	assert.Nil(t, Returns(equityCurve(100)))
	// 前值为零时该期收益记 0，不除零
	rets = Returns(equityCurve(0, 100))
	require.Len(t, rets, 1)
	assert.Equal(t, 0.0, rets[0])
}

func TestAnnualReturn(t *testing.T) {
	assert.Equal(t, 0.0, AnnualReturn(nil))
	// (1+0.001)^252 - 1
	assert.InDelta(t, math.Pow(1.001, 252)-1, AnnualReturn([]float64{0.001, 0.001}), 1e-12)
}

func TestAnnualVolatility(t *testing.T) {
	assert.Equal(t, 0.0, AnnualVolatility(nil))
	// 样本标准差用 n-1：std([0.01,-0.01]) = sqrt(0.0002/1) ≈ 0.014142
	vol := AnnualVolatility([]float64{0.01, -0.01})
	assert.InDelta(t, 0.0141421356*math.Sqrt(252), vol, 1e-8)
	// 单元素序列方差未定义，约定为 0
	assert.Equal(t, 0.0, AnnualVolatility([]float64{0.05}))
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(nil, 0.03))
	// 零波动序列返回 0 而不是 ±Inf
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.03))

	rets := []float64{0.01, -0.005, 0.02, 0.003}
	sd := math.Sqrt((math.Pow(0.01-0.007, 2) + math.Pow(-0.005-0.007, 2) +
		math.Pow(0.02-0.007, 2) + math.Pow(0.003-0.007, 2)) / 3)
	want := (0.007*252 - 0.03) / (sd * math.Sqrt(252))
	assert.InDelta(t, want, SharpeRatio(rets, 0.03), 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	// 峰 120、谷 84（idx3）：回撤 30%；峰值索引取谷底前
	// drawdown 切片的 argmin，即 idx2
	stats := MaxDrawdown(equityCurve(100, 120, 96, 84, 110))
	assert.InDelta(t, 0.30, stats.MaxDrawdown, 1e-9)
	assert.Equal(t, "30.00%", stats.MaxDrawdownPct)
	assert.Equal(t, 3, stats.TroughIndex)
	assert.Equal(t, 2, stats.PeakIndex)
	assert.True(t, stats.TroughDate.After(stats.PeakDate))
}

func TestMaxDrawdownTies(t *testing.T) {
	// 两个等深谷底，取最早出现
	stats := MaxDrawdown(equityCurve(100, 80, 90, 80, 100))
	assert.Equal(t, 1, stats.TroughIndex)

	// 谷底在首位时峰值索引退化为 0
	stats = MaxDrawdown(equityCurve(100, 110, 120))
	assert.Equal(t, 0, stats.TroughIndex)
	assert.Equal(t, 0, stats.PeakIndex)
	assert.Equal(t, 0.0, stats.MaxDrawdown)
}

func TestMaxDrawdownEmpty(t *testing.T) {
	stats := MaxDrawdown(nil)
	assert.Equal(t, 0.0, stats.MaxDrawdown)
	assert.Equal(t, "0.00%", stats.MaxDrawdownPct)
	assert.True(t, stats.PeakDate.IsZero())
}

func TestWinRate(t *testing.T) {
	trades := []backtest.Trade{
		{PnL: 100},
		{PnL: -50},
		{PnL: 0}, // 零盈亏计亏损
		{PnL: 30},
	}
	stats := WinRate(trades)
	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 2, stats.LosingTrades)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-12)
	assert.Equal(t, "50.0%", stats.WinRatePct)
	assert.InDelta(t, 65.0, stats.AvgWin, 1e-9)
	assert.InDelta(t, -25.0, stats.AvgLoss, 1e-9)
	assert.InDelta(t, 2.6, stats.ProfitFactor, 1e-9)
}

func TestWinRateEmpty(t *testing.T) {
	stats := WinRate(nil)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.ProfitFactor)
}

func TestWinRateNoLosses(t *testing.T) {
	stats := WinRate([]backtest.Trade{{PnL: 10}, {PnL: 20}})
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))
	assert.Equal(t, "100.0%", stats.WinRatePct)
}
