package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrader/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			CloseTime: int64(i+1)*60000 - 1,
			Close:     c,
		}
	}
	return out
}

func TestMACrossValidation(t *testing.T) {
	_, err := NewMACross(0, 20)
	assert.Error(t, err)
	_, err = NewMACross(5, 0)
	assert.Error(t, err)
	_, err = NewMACross(20, 5)
	assert.Error(t, err)
	_, err = NewMACross(5, 5)
	assert.Error(t, err)

	s, err := NewMACross(5, 20)
	require.NoError(t, err)
	assert.Equal(t, "ma_cross(5,20)", s.Name())
}

func TestMACrossWarmup(t *testing.T) {
	s, err := NewMACross(2, 4)
	require.NoError(t, err)

	// 不足慢线窗口时全 0
	signals := s.GenerateSignals(candlesFromCloses([]float64{1, 2, 3}))
	assert.Equal(t, []int{0, 0, 0}, signals)

	// 信号长度与输入对齐，前 slow-1 个保持 0
	closes := []float64{1, 2, 3, 4, 5, 6}
	signals = s.GenerateSignals(candlesFromCloses(closes))
	require.Len(t, signals, len(closes))
	assert.Equal(t, []int{0, 0, 0}, signals[:3])
}

func TestMACrossSignals(t *testing.T) {
	s, err := NewMACross(2, 4)
	require.NoError(t, err)

	// 上升段快线高于慢线 → 买入；随后下跌快线跌破慢线 → 卖出
	closes := []float64{1, 2, 3, 4, 5, 6, 5, 3, 1, 1}
	signals := s.GenerateSignals(candlesFromCloses(closes))
	require.Len(t, signals, len(closes))

	// idx3: fast=(3+4)/2=3.5 > slow=(1+2+3+4)/4=2.5
	assert.Equal(t, SignalBuy, signals[3])
	assert.Equal(t, SignalBuy, signals[5])
	// idx8: fast=(3+1)/2=2 < slow=(5+3+1+... )/4
	assert.Equal(t, SignalSell, signals[8])
	assert.Equal(t, SignalSell, signals[9])
}

func TestRegistry(t *testing.T) {
	_, err := New("nope", nil)
	assert.Error(t, err)

	s, err := New("ma_cross", Params{"fast": 3, "slow": 9})
	require.NoError(t, err)
	assert.Equal(t, "ma_cross(3,9)", s.Name())

	// 配置反序列化常见的 float64 参数也能接受
	s, err = New("ma_cross", Params{"fast": float64(3), "slow": float64(9)})
	require.NoError(t, err)
	assert.Equal(t, "ma_cross(3,9)", s.Name())

	assert.Contains(t, Names(), "ma_cross")
}

func TestIntParam(t *testing.T) {
	p := Params{"a": 3, "b": int64(4), "c": 5.0, "d": "x"}
	assert.Equal(t, 3, p.IntParam("a", 9))
	assert.Equal(t, 4, p.IntParam("b", 9))
	assert.Equal(t, 5, p.IntParam("c", 9))
	assert.Equal(t, 9, p.IntParam("d", 9))
	assert.Equal(t, 9, p.IntParam("missing", 9))
}
