package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResultStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun() Run {
	return Run{
		ID:             "run-1",
		Symbol:         "BTCUSDT",
		Strategy:       "ma_cross",
		Status:         RunStatusPending,
		StartTS:        1_700_000_000_000,
		EndTS:          1_700_086_400_000,
		Timeframe:      "1d",
		InitialCapital: 100000,
		Config: RunConfig{
			Symbol:         "BTCUSDT",
			Strategy:       "ma_cross",
			Params:         map[string]any{"fast": float64(5), "slow": float64(20)},
			Timeframe:      "1d",
			InitialCapital: 100000,
			CommissionRate: 0.001,
			SlippageRate:   0.001,
			MinCommission:  5,
			LotSize:        1,
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRun(ctx, sampleRun()))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, got.Status)
	assert.Equal(t, "ma_cross", got.Config.Strategy)
	assert.Equal(t, float64(5), got.Config.Params["fast"])
	assert.True(t, got.CompletedAt.IsZero())

	require.NoError(t, store.UpdateRunStatus(ctx, "run-1", RunStatusRunning, ""))
	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.True(t, got.CompletedAt.IsZero())

	stats := RunStats{FinalValue: 126559.44, Profit: 26559.44, Trades: 1, Wins: 1}
	require.NoError(t, store.UpdateRunSummary(ctx, "run-1", RunStatusDone, stats, ""))
	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, got.Status)
	assert.InDelta(t, 126559.44, got.FinalValue, 1e-9)
	assert.Equal(t, 1, got.Stats.Trades)
	assert.False(t, got.CompletedAt.IsZero())

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunResultRoundTrip(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, sampleRun()))

	day0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, 1)

	_, err := store.InsertOrder(ctx, "run-1", Order{
		Symbol: "BTCUSDT", Side: "buy", Price: 10.01, Quantity: 8991,
		Notional: 89999.91, Fee: 89.99991, ExecutedAt: day0,
	})
	require.NoError(t, err)
	_, err = store.InsertTrade(ctx, "run-1", Trade{
		Symbol: "BTCUSDT", Direction: "long",
		EntryDate: day0, ExitDate: day1,
		EntryPrice: 10.01, ExitPrice: 12.987, Quantity: 8991,
		PnL: 26649.44, Commission: 116.77, EntryCommission: 90,
	})
	require.NoError(t, err)
	_, err = store.InsertEquity(ctx, "run-1", EquityPoint{
		Date: day0, Capital: 100000, TotalValue: 100000,
	})
	require.NoError(t, err)
	_, err = store.InsertEquity(ctx, "run-1", EquityPoint{
		Date: day1, Capital: 9910.09, PositionValue: 116883,
		TotalValue: 126793.09, PositionCount: 1,
	})
	require.NoError(t, err)

	orders, err := store.ListOrders(ctx, "run-1", 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "buy", orders[0].Side)
	assert.Equal(t, day0.UnixMilli(), orders[0].ExecutedAt.UnixMilli())

	trades, err := store.ListTrades(ctx, "run-1", 100)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 26649.44, trades[0].PnL, 1e-9)
	assert.Equal(t, "run-1", trades[0].RunID)

	equity, err := store.ListEquity(ctx, "run-1", 100)
	require.NoError(t, err)
	require.Len(t, equity, 2)
	assert.Equal(t, 1, equity[1].PositionCount)
	assert.True(t, equity[0].Date.Before(equity[1].Date))
}

func TestGetRunMissing(t *testing.T) {
	store := newTestResultStore(t)
	_, err := store.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}
