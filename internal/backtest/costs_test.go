package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultCosts() CostModel {
	return CostModel{CommissionRate: 0.001, SlippageRate: 0.001, MinCommission: 5.0}
}

func TestCommissionFloor(t *testing.T) {
	costs := defaultCosts()
	// 名义金额太小时落在最低佣金
	assert.Equal(t, 5.0, costs.Commission(1000))
	assert.Equal(t, 5.0, costs.Commission(4999.99))
	// 超过阈值后按比例
	assert.InDelta(t, 10.0, costs.Commission(10000), 1e-9)
	assert.InDelta(t, 89.99991, costs.Commission(89999.91), 1e-9)
}

func TestSlippageDirection(t *testing.T) {
	costs := defaultCosts()
	assert.InDelta(t, 10.01, costs.SlippagePrice(10, Buy), 1e-9)
	assert.InDelta(t, 12.987, costs.SlippagePrice(13, Sell), 1e-9)
}

func TestZeroSlippage(t *testing.T) {
	costs := CostModel{CommissionRate: 0.001, MinCommission: 5}
	assert.Equal(t, 10.0, costs.SlippagePrice(10, Buy))
	assert.Equal(t, 10.0, costs.SlippagePrice(10, Sell))
}
