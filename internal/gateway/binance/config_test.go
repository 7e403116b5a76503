package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}
	out := cfg.withDefaults()
	assert.Equal(t, "https://fapi.binance.com", out.RESTBaseURL)
	assert.Equal(t, 15*time.Second, out.HTTPTimeout)

	// 代理未启用时 URL 一律清空
	cfg = Config{ProxyEnabled: false, RESTProxyURL: "http://127.0.0.1:7890", WSProxyURL: "http://127.0.0.1:7891"}
	out = cfg.withDefaults()
	assert.Empty(t, out.RESTProxyURL)
	assert.Empty(t, out.WSProxyURL)

	// 只配 REST 代理时 WS 复用同一个
	cfg = Config{ProxyEnabled: true, RESTProxyURL: " http://127.0.0.1:7890 "}
	out = cfg.withDefaults()
	assert.Equal(t, "http://127.0.0.1:7890", out.RESTProxyURL)
	assert.Equal(t, "http://127.0.0.1:7890", out.WSProxyURL)
}
