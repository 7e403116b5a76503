package backtest

// Side 表示订单方向；模拟引擎只开多仓，sell 即平仓。
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// CostModel 计算单笔订单的佣金与滑点，纯函数、无随机性。
// 滑点是最坏情况的固定比例调整，不是市场冲击模型。
type CostModel struct {
	CommissionRate float64
	SlippageRate   float64
	MinCommission  float64
}

// Commission 返回佣金：max(名义金额×费率, 最低佣金)。
// 零数量订单由调用方拦截，这里不做保护。
func (m CostModel) Commission(notional float64) float64 {
	fee := notional * m.CommissionRate
	if fee < m.MinCommission {
		return m.MinCommission
	}
	return fee
}

// SlippagePrice 返回滑点调整后的成交价：买单加价、卖单减价。
func (m CostModel) SlippagePrice(price float64, side Side) float64 {
	if side == Buy {
		return price * (1 + m.SlippageRate)
	}
	return price * (1 - m.SlippageRate)
}
