package strategy

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"pulsetrader/internal/market"
)

func init() {
	Register("ma_cross", func(params Params) (Strategy, error) {
		return NewMACross(params.IntParam("fast", 5), params.IntParam("slow", 20))
	})
}

// MACross 双均线交叉策略：快线在慢线上方给买入信号，
// 快线跌到慢线及以下给卖出信号，慢线未满窗口期保持 0。
type MACross struct {
	fast int
	slow int
}

func NewMACross(fast, slow int) (*MACross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("均线窗口必须大于零: fast=%d slow=%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("快线窗口必须小于慢线窗口: fast=%d slow=%d", fast, slow)
	}
	return &MACross{fast: fast, slow: slow}, nil
}

func (s *MACross) Name() string {
	return fmt.Sprintf("ma_cross(%d,%d)", s.fast, s.slow)
}

func (s *MACross) GenerateSignals(candles []market.Candle) []int {
	signals := make([]int, len(candles))
	if len(candles) < s.slow {
		return signals
	}
	closes := market.Closes(candles)
	fastMA := talib.Sma(closes, s.fast)
	slowMA := talib.Sma(closes, s.slow)
	// talib 的前 window-1 个值无意义，从慢线首个有效点开始
	for i := s.slow - 1; i < len(candles); i++ {
		if fastMA[i] > slowMA[i] {
			signals[i] = SignalBuy
		} else {
			signals[i] = SignalSell
		}
	}
	return signals
}
