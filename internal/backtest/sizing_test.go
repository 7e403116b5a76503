package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeOrder(t *testing.T) {
	// floor(100000*0.9/10.01) = 8991
	assert.Equal(t, int64(8991), SizeOrder(100000, 10.01, 1))
	// 整手约束：8991 向下取整到 100 的倍数
	assert.Equal(t, int64(8900), SizeOrder(100000, 10.01, 100))
}

func TestSizeOrderGuards(t *testing.T) {
	assert.Equal(t, int64(0), SizeOrder(0, 10, 1))
	assert.Equal(t, int64(0), SizeOrder(-1, 10, 1))
	assert.Equal(t, int64(0), SizeOrder(100000, 0, 1))
	assert.Equal(t, int64(0), SizeOrder(100000, -5, 1))
	// lot<=0 回退到 1
	assert.Equal(t, int64(8991), SizeOrder(100000, 10.01, 0))
	assert.Equal(t, int64(8991), SizeOrder(100000, 10.01, -3))
}

func TestSizeOrderSmallCash(t *testing.T) {
	// 现金不足一手时返回 0
	assert.Equal(t, int64(0), SizeOrder(500, 10, 100))
	assert.Equal(t, int64(45), SizeOrder(500, 10, 1))
}
