package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

// decimalGTE 规避二进制浮点累计误差导致的边界误判，
// 例如 cash 在多次交易后与所需金额只差 1e-13 的场景。
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
