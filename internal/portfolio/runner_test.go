package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrader/internal/backtest"
	"pulsetrader/internal/market"
)

func testCosts() backtest.CostModel {
	return backtest.CostModel{CommissionRate: 0.001, SlippageRate: 0.001, MinCommission: 5}
}

func testStrategyConfig(name string, lot int64) StrategyConfig {
	return StrategyConfig{
		Name:              name,
		Strategy:          "ma_cross",
		Symbols:           []string{"BTCUSDT"},
		CapitalAllocation: 0.5,
		Params:            map[string]any{"fast": float64(2), "slow": float64(4)},
		Window:            10,
		LotSize:           lot,
	}
}

func feedQuotes(r *runner, symbol string, prices []float64) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, p := range prices {
		r.handle(market.Quote{
			Symbol: symbol,
			Price:  p,
			Volume: 10,
			Time:   base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestRunnerBuysOnCross(t *testing.T) {
	r, err := newRunner(testStrategyConfig("trend", 100), 100000, testCosts(), nil)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, r.allocated)

	// 上升序列在慢线满窗后触发买入
	feedQuotes(r, "BTCUSDT", []float64{1, 2, 3, 4})

	pos := r.account.Position("BTCUSDT")
	require.NotNil(t, pos)
	// 整手约束：floor(45000/4.004)=11238 → 取整到 11200
	assert.Equal(t, int64(11200), pos.Quantity)
	assert.Equal(t, int64(0), pos.Quantity%100)
	assert.Len(t, r.executor.Orders(), 1)
}

func TestRunnerRoundTrip(t *testing.T) {
	r, err := newRunner(testStrategyConfig("trend", 100), 100000, testCosts(), nil)
	require.NoError(t, err)

	// 涨后跌破均线：先买后全部卖出，回到空仓
	feedQuotes(r, "BTCUSDT", []float64{1, 2, 3, 4, 1, 1})

	assert.False(t, r.account.HasPosition("BTCUSDT"))
	require.Len(t, r.executor.Trades(), 1)
	tr := r.executor.Trades()[0]
	assert.Equal(t, int64(11200), tr.Quantity)
	assert.Less(t, tr.PnL, 0.0)

	status := r.status()
	assert.Equal(t, "trend", status.Name)
	assert.Equal(t, 0, status.Positions)
	assert.Equal(t, 2, status.Orders)
	assert.Equal(t, 1, status.Trades)
	assert.InDelta(t, r.account.Cash, status.Equity, 1e-9)
}

func TestRunnerIgnoresUnaffordableBuy(t *testing.T) {
	cfg := testStrategyConfig("tiny", 100)
	cfg.CapitalAllocation = 0.001 // 100 元买不起一手
	r, err := newRunner(cfg, 100000, testCosts(), nil)
	require.NoError(t, err)

	feedQuotes(r, "BTCUSDT", []float64{10, 20, 30, 40})
	assert.False(t, r.account.HasPosition("BTCUSDT"))
	assert.Empty(t, r.executor.Orders())
	assert.Equal(t, 100.0, r.account.Cash)
}

func TestRunnerLedgerIsolation(t *testing.T) {
	costs := testCosts()
	a, err := newRunner(testStrategyConfig("alpha", 100), 100000, costs, nil)
	require.NoError(t, err)
	b, err := newRunner(testStrategyConfig("beta", 1), 200000, costs, nil)
	require.NoError(t, err)

	prices := []float64{1, 2, 3, 4}
	feedQuotes(a, "BTCUSDT", prices)
	feedQuotes(b, "BTCUSDT", prices)

	// 同一 symbol 各自独立持仓：数量、现金互不影响
	posA := a.account.Position("BTCUSDT")
	posB := b.account.Position("BTCUSDT")
	require.NotNil(t, posA)
	require.NotNil(t, posB)
	assert.Equal(t, int64(11200), posA.Quantity)
	assert.Equal(t, int64(22477), posB.Quantity) // floor(90000/4.004)，不取整手
	assert.NotEqual(t, a.account.Cash, b.account.Cash)
}

func TestRunnerWindowTrim(t *testing.T) {
	cfg := testStrategyConfig("trim", 100)
	cfg.Window = 5
	r, err := newRunner(cfg, 100000, testCosts(), nil)
	require.NoError(t, err)

	feedQuotes(r, "BTCUSDT", []float64{1, 1, 1, 1, 1, 1, 1, 1})
	assert.Len(t, r.window["BTCUSDT"], 5)
}

func TestRunnerSubscribed(t *testing.T) {
	r, err := newRunner(testStrategyConfig("sub", 100), 100000, testCosts(), nil)
	require.NoError(t, err)
	assert.True(t, r.subscribed("BTCUSDT"))
	assert.False(t, r.subscribed("ETHUSDT"))
}
