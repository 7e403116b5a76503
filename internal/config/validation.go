package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level 非法: %s", c.App.LogLevel)
	}
	if !strings.Contains(c.App.HTTPAddr, ":") {
		return fmt.Errorf("app.http_addr 需要形如 host:port 或 :port")
	}
	if c.Backtest.CommissionRate >= 1 {
		return fmt.Errorf("backtest.commission_rate 需小于 1")
	}
	if c.Backtest.SlippageRate >= 1 {
		return fmt.Errorf("backtest.slippage_rate 需小于 1")
	}
	if c.Backtest.RiskFreeRate < 0 || c.Backtest.RiskFreeRate >= 1 {
		return fmt.Errorf("backtest.risk_free_rate 需在 [0,1)")
	}
	if c.Portfolio.Enabled && strings.TrimSpace(c.Portfolio.ConfigPath) == "" {
		return fmt.Errorf("portfolio.enabled 时必须给出 portfolio.config_path")
	}
	return nil
}
