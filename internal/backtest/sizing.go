package backtest

import "math"

// cashUtilization 控制下单时动用的现金比例，预留佣金缓冲，
// 避免信号反复翻转时现金被手续费耗尽。
const cashUtilization = 0.9

// SizeOrder 是统一的下单数量策略：floor(cash×0.9/price)，
// 再向下取整到 lot 的整数倍。回测驱动器用 lot=1，
// 多策略管理器按 A 股整手约束用 lot=100。
// price 为滑点调整后的成交价。
func SizeOrder(cash, price float64, lot int64) int64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	if lot <= 0 {
		lot = 1
	}
	qty := int64(math.Floor(cash * cashUtilization / price))
	return qty / lot * lot
}
