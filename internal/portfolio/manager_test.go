package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManagerConfig() Config {
	return Config{
		TotalCapital:   1000000,
		CommissionRate: 0.001,
		SlippageRate:   0.001,
		MinCommission:  5,
		Strategies: map[string]StrategyConfig{
			"alpha": {
				Name: "alpha", Strategy: "ma_cross",
				Symbols:           []string{"BTCUSDT", "ETHUSDT"},
				CapitalAllocation: 0.5,
				Window:            10, LotSize: 100,
			},
			"beta": {
				Name: "beta", Strategy: "ma_cross",
				Symbols:           []string{"BTCUSDT"},
				CapitalAllocation: 0.3,
				Window:            10, LotSize: 100,
			},
		},
	}
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(testManagerConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, m.Symbols())
	require.Len(t, m.runners, 2)
	assert.InDelta(t, 500000.0, m.runners["alpha"].allocated, 1e-9)
	assert.InDelta(t, 300000.0, m.runners["beta"].allocated, 1e-9)

	_, err = NewManager(Config{TotalCapital: 1000}, nil)
	assert.Error(t, err)
}

func TestNewManagerUnknownStrategy(t *testing.T) {
	cfg := testManagerConfig()
	sc := cfg.Strategies["alpha"]
	sc.Strategy = "nope"
	cfg.Strategies["alpha"] = sc
	_, err := NewManager(cfg, nil)
	assert.Error(t, err)
}

func TestManagerApply(t *testing.T) {
	m, err := NewManager(testManagerConfig(), nil)
	require.NoError(t, err)

	next := testManagerConfig()
	delete(next.Strategies, "beta")
	next.Strategies["gamma"] = StrategyConfig{
		Name: "gamma", Strategy: "ma_cross",
		Symbols:           []string{"SOLUSDT"},
		CapitalAllocation: 0.2,
		Window:            10, LotSize: 100,
	}

	m.Apply(Snapshot{Version: 2, Config: next})

	_, hasBeta := m.runners["beta"]
	assert.False(t, hasBeta)
	gamma, hasGamma := m.runners["gamma"]
	require.True(t, hasGamma)
	assert.InDelta(t, 200000.0, gamma.allocated, 1e-9)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, m.Symbols())
}

func TestManagerApplyKeepsExistingRunner(t *testing.T) {
	m, err := NewManager(testManagerConfig(), nil)
	require.NoError(t, err)
	alpha := m.runners["alpha"]

	next := testManagerConfig()
	sc := next.Strategies["alpha"]
	sc.CapitalAllocation = 0.9 // 改参不影响在跑实例
	next.Strategies["alpha"] = sc
	m.Apply(Snapshot{Version: 3, Config: next})

	assert.Same(t, alpha, m.runners["alpha"])
	assert.InDelta(t, 500000.0, m.runners["alpha"].allocated, 1e-9)
}
