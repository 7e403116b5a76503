package binance

import (
	"strings"
	"time"
)

// Config 只覆盖 pulsetrader 用到的 USDT 合约行情面：
// REST 拉 K 线、WebSocket 订阅逐笔成交。
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string
	WSProxyURL   string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	out.WSProxyURL = strings.TrimSpace(out.WSProxyURL)
	if !out.ProxyEnabled {
		out.RESTProxyURL = ""
		out.WSProxyURL = ""
		return out
	}
	// 只配一个代理时 WS 复用 REST 代理
	if out.WSProxyURL == "" {
		out.WSProxyURL = out.RESTProxyURL
	}
	return out
}
