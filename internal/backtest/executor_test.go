package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestExecutor(capital float64) *Executor {
	return NewExecutor(NewAccount(capital), defaultCosts())
}

func TestExecuteBuySell(t *testing.T) {
	exec := newTestExecutor(100000)
	day0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)

	ok := exec.Execute("600000", Buy, 8991, 10, day0)
	assert.True(t, ok)

	pos := exec.Account().Position("600000")
	assert.NotNil(t, pos)
	assert.Equal(t, int64(8991), pos.Quantity)
	assert.InDelta(t, 10.01, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 89.99991, pos.EntryCommission, 1e-9)
	assert.InDelta(t, 100000-89999.91-89.99991, exec.Account().Cash, 1e-6)

	ok = exec.Execute("600000", Sell, 8991, 13, day1)
	assert.True(t, ok)
	assert.False(t, exec.Account().HasPosition("600000"))

	trades := exec.Trades()
	assert.Len(t, trades, 1)
	tr := trades[0]
	assert.InDelta(t, 12.987, tr.ExitPrice, 1e-9)
	// pnl 只扣平仓佣金
	assert.InDelta(t, (12.987-10.01)*8991-116.766117, tr.PnL, 1e-6)
	assert.InDelta(t, 116.766117, tr.Commission, 1e-6)
	assert.Equal(t, day0, tr.EntryDate)
	assert.Equal(t, day1, tr.ExitDate)

	// 资金守恒：期末现金 = 初始 + pnl - 开仓佣金
	assert.InDelta(t, 100000+tr.PnL-89.99991, exec.Account().Cash, 1e-6)
	assert.Len(t, exec.Orders(), 2)
}

func TestExecuteRejectInsufficientCash(t *testing.T) {
	exec := newTestExecutor(1000)
	ts := time.Now()

	ok := exec.Execute("600000", Buy, 1000, 10, ts)
	assert.False(t, ok)
	// 拒单不产生任何状态变化
	assert.Equal(t, 1000.0, exec.Account().Cash)
	assert.False(t, exec.Account().HasPosition("600000"))
	assert.Empty(t, exec.Orders())
	assert.Empty(t, exec.Trades())
}

func TestExecuteRejectOversell(t *testing.T) {
	exec := newTestExecutor(100000)
	ts := time.Now()

	assert.False(t, exec.Execute("600000", Sell, 100, 10, ts))

	assert.True(t, exec.Execute("600000", Buy, 100, 10, ts))
	cashAfterBuy := exec.Account().Cash
	assert.False(t, exec.Execute("600000", Sell, 200, 10, ts))
	assert.Equal(t, cashAfterBuy, exec.Account().Cash)
	assert.Equal(t, int64(100), exec.Account().Position("600000").Quantity)
	assert.Len(t, exec.Orders(), 1)
}

func TestExecuteRejectInvalidInput(t *testing.T) {
	exec := newTestExecutor(100000)
	ts := time.Now()
	assert.False(t, exec.Execute("600000", Buy, 0, 10, ts))
	assert.False(t, exec.Execute("600000", Buy, -1, 10, ts))
	assert.False(t, exec.Execute("600000", Buy, 100, 0, ts))
	assert.False(t, exec.Execute("600000", Side("hold"), 100, 10, ts))
	assert.Empty(t, exec.Orders())
}

func TestBuyMergeVWAP(t *testing.T) {
	exec := newTestExecutor(100000)
	day0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)

	assert.True(t, exec.Execute("600000", Buy, 100, 10, day0))
	assert.True(t, exec.Execute("600000", Buy, 100, 20, day1))

	pos := exec.Account().Position("600000")
	assert.Equal(t, int64(200), pos.Quantity)
	// 加权平均成本 = (100*10.01 + 100*20.02) / 200
	assert.InDelta(t, 15.015, pos.EntryPrice, 1e-9)
	// 开仓时间保持首次买入
	assert.Equal(t, day0, pos.EntryDate)
	assert.InDelta(t, 5.0+5.0, pos.EntryCommission, 1e-9)
}

func TestPartialClose(t *testing.T) {
	exec := newTestExecutor(100000)
	day0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)

	assert.True(t, exec.Execute("600000", Buy, 200, 50, day0))
	pos := exec.Account().Position("600000")
	entryFeeTotal := pos.EntryCommission

	assert.True(t, exec.Execute("600000", Sell, 50, 60, day1))

	pos = exec.Account().Position("600000")
	assert.NotNil(t, pos)
	assert.Equal(t, int64(150), pos.Quantity)
	// 部分平仓不改变平均成本与开仓时间
	assert.InDelta(t, 50.05, pos.EntryPrice, 1e-9)
	assert.Equal(t, day0, pos.EntryDate)
	// 开仓佣金按比例扣减
	assert.InDelta(t, entryFeeTotal*0.75, pos.EntryCommission, 1e-9)

	trades := exec.Trades()
	assert.Len(t, trades, 1)
	assert.InDelta(t, entryFeeTotal*0.25, trades[0].EntryCommission, 1e-9)
	assert.Equal(t, int64(50), trades[0].Quantity)
}
