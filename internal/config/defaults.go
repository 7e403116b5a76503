package config

import (
	"path/filepath"
	"strings"
)

const (
	defaultHTTPAddr       = ":9991"
	defaultLogLevel       = "info"
	defaultDataDir        = "data"
	defaultRateLimit      = 480
	defaultMaxBatch       = 1000
	defaultFetchWorkers   = 2
	defaultRunWorkers     = 1
	defaultInitialCapital = 100000.0
	defaultCommissionRate = 0.001
	defaultSlippageRate   = 0.001
	defaultMinCommission  = 5.0
	defaultLotSize        = int64(1)
	defaultRiskFreeRate   = 0.03
	defaultQuoteBuffer    = 1024
)

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = "dev"
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		c.Data.Dir = defaultDataDir
	}
	if strings.TrimSpace(c.Fetch.DefaultExchange) == "" {
		c.Fetch.DefaultExchange = "binance"
	}
	if c.Fetch.RateLimitPerMin <= 0 {
		c.Fetch.RateLimitPerMin = defaultRateLimit
	}
	if c.Fetch.MaxBatch <= 0 {
		c.Fetch.MaxBatch = defaultMaxBatch
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = defaultFetchWorkers
	}
	if c.Backtest.MaxConcurrent <= 0 {
		c.Backtest.MaxConcurrent = defaultRunWorkers
	}
	if c.Backtest.InitialCapital <= 0 {
		c.Backtest.InitialCapital = defaultInitialCapital
	}
	if c.Backtest.CommissionRate <= 0 {
		c.Backtest.CommissionRate = defaultCommissionRate
	}
	if c.Backtest.SlippageRate <= 0 {
		c.Backtest.SlippageRate = defaultSlippageRate
	}
	if c.Backtest.MinCommission <= 0 {
		c.Backtest.MinCommission = defaultMinCommission
	}
	if c.Backtest.LotSize <= 0 {
		c.Backtest.LotSize = defaultLotSize
	}
	if c.Backtest.RiskFreeRate <= 0 {
		c.Backtest.RiskFreeRate = defaultRiskFreeRate
	}
	if c.Portfolio.QuoteBuffer <= 0 {
		c.Portfolio.QuoteBuffer = defaultQuoteBuffer
	}
	if c.Portfolio.Enabled && strings.TrimSpace(c.Portfolio.JournalPath) == "" {
		c.Portfolio.JournalPath = filepath.Join(c.Data.Dir, "portfolio.db")
	}
}
