package backtest

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(prices []float64, signals []int) []SignalPoint {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make([]SignalPoint, len(prices))
	for i := range prices {
		series[i] = SignalPoint{
			Time:   base.AddDate(0, 0, i),
			Price:  prices[i],
			Signal: signals[i],
		}
	}
	return series
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(EngineConfig{
		InitialCapital: 100000,
		Costs:          defaultCosts(),
		LotSize:        1,
	})
	require.NoError(t, err)
	return eng
}

// 固定场景：价格 [10,10,10,11,12,13]，信号 [0,0,+1,0,0,-1]。
// 第 2 天滑点价 10.01 买入 floor(90000/10.01)=8991 股，佣金约 90.0；
// 第 5 天滑点价 12.987 卖出，pnl ≈ 8991×2.977 − 116.77 ≈ 26649.44。
func TestEngineRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	series := makeSeries([]float64{10, 10, 10, 11, 12, 13}, []int{0, 0, 1, 0, 0, -1})

	final, err := eng.Run("600000", series)
	require.NoError(t, err)

	trades := eng.Trades()
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, int64(8991), tr.Quantity)
	assert.InDelta(t, 10.01, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 12.987, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 26649.440883, tr.PnL, 1e-4)

	// 期末价值 100% 为现金
	assert.InDelta(t, 126559.440973, final, 1e-4)
	assert.Equal(t, 0, eng.executor.Account().PositionCount())

	orders := eng.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "buy", orders[0].Side)
	assert.InDelta(t, 89.99991, orders[0].Fee, 1e-6)
	assert.Equal(t, "sell", orders[1].Side)
}

// 快照先于当日交易：买入当天的资金曲线仍是满额现金。
func TestEngineSnapshotBeforeAct(t *testing.T) {
	eng := newTestEngine(t)
	series := makeSeries([]float64{10, 10, 10, 11, 12, 13}, []int{0, 0, 1, 0, 0, -1})
	_, err := eng.Run("600000", series)
	require.NoError(t, err)

	curve := eng.EquityCurve()
	require.Len(t, curve, 6)
	assert.Equal(t, 100000.0, curve[2].TotalValue)
	assert.Equal(t, 0, curve[2].PositionCount)
	// 持仓日的市值跟随当日价格
	assert.InDelta(t, 8991*11.0, curve[3].PositionValue, 1e-6)
	assert.Equal(t, 1, curve[3].PositionCount)
	// 卖出日快照仍含持仓
	assert.InDelta(t, 8991*13.0, curve[5].PositionValue, 1e-6)
}

// 序列结束仍持仓时按末日价格强制平仓。
func TestEngineForcedLiquidation(t *testing.T) {
	eng := newTestEngine(t)
	series := makeSeries([]float64{10, 11, 12}, []int{1, 0, 0})
	final, err := eng.Run("600000", series)
	require.NoError(t, err)

	assert.Equal(t, 0, eng.executor.Account().PositionCount())
	require.Len(t, eng.Trades(), 1)
	assert.InDelta(t, 12*0.999, eng.Trades()[0].ExitPrice, 1e-9)
	assert.Greater(t, final, 100000.0)
}

// 已持仓时重复买入信号不加仓。
func TestEngineRedundantBuyIsNoop(t *testing.T) {
	eng := newTestEngine(t)
	series := makeSeries([]float64{10, 10, 10}, []int{1, 1, -1})
	_, err := eng.Run("600000", series)
	require.NoError(t, err)
	assert.Len(t, eng.Orders(), 2) // 一买一卖
}

// 空仓时的卖出信号静默跳过。
func TestEngineSellWithoutPosition(t *testing.T) {
	eng := newTestEngine(t)
	series := makeSeries([]float64{10, 10}, []int{-1, 0})
	final, err := eng.Run("600000", series)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, final)
	assert.Empty(t, eng.Orders())
}

// 相同输入两次运行产生逐字段相同的输出。
func TestEngineDeterminism(t *testing.T) {
	prices := []float64{10, 10.5, 10.2, 11, 12, 11.5, 13, 12.8}
	signals := []int{0, 1, 0, -1, 1, 0, 0, -1}

	run := func() ([]EquityPoint, []Trade, []Order, float64) {
		eng := newTestEngine(t)
		final, err := eng.Run("600000", makeSeries(prices, signals))
		require.NoError(t, err)
		return eng.EquityCurve(), eng.Trades(), eng.Orders(), final
	}

	c1, t1, o1, f1 := run()
	c2, t2, o2, f2 := run()
	assert.True(t, reflect.DeepEqual(c1, c2))
	assert.True(t, reflect.DeepEqual(t1, t2))
	assert.True(t, reflect.DeepEqual(o1, o2))
	assert.Equal(t, f1, f2)
}

func TestEngineValidation(t *testing.T) {
	_, err := NewEngine(EngineConfig{InitialCapital: 0, Costs: defaultCosts()})
	assert.Error(t, err)

	eng := newTestEngine(t)
	_, err = eng.Run("", nil)
	assert.Error(t, err)

	final, err := eng.Run("600000", nil)
	assert.NoError(t, err)
	assert.Equal(t, 100000.0, final)
	assert.Empty(t, eng.EquityCurve())
}
