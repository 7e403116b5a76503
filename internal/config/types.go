package config

// Config 是 pulsetrader 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Data      DataConfig      `toml:"data"`
	Fetch     FetchConfig     `toml:"fetch"`
	Backtest  BacktestConfig  `toml:"backtest"`
	Binance   BinanceConfig   `toml:"binance"`
	Portfolio PortfolioConfig `toml:"portfolio"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	TradeLog string `toml:"trade_log_path"`
}

// DataConfig 指定本地 SQLite 数据目录。
type DataConfig struct {
	Dir string `toml:"dir"`
}

// FetchConfig 控制历史 K 线拉取。
type FetchConfig struct {
	DefaultExchange string `toml:"default_exchange"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	MaxBatch        int    `toml:"max_batch"`
	MaxConcurrent   int    `toml:"max_concurrent"`
}

// BacktestConfig 给出回测的缺省参数；请求里显式给出的字段优先。
type BacktestConfig struct {
	MaxConcurrent  int     `toml:"max_concurrent"`
	InitialCapital float64 `toml:"initial_capital"`
	CommissionRate float64 `toml:"commission_rate"`
	SlippageRate   float64 `toml:"slippage_rate"`
	MinCommission  float64 `toml:"min_commission"`
	LotSize        int64   `toml:"lot_size"`
	RiskFreeRate   float64 `toml:"risk_free_rate"`
}

type BinanceConfig struct {
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	ProxyEnabled       bool   `toml:"proxy_enabled"`
	RESTProxyURL       string `toml:"rest_proxy_url"`
	WSProxyURL         string `toml:"ws_proxy_url"`
}

// PortfolioConfig 控制多策略组合模式。
type PortfolioConfig struct {
	Enabled     bool   `toml:"enabled"`
	ConfigPath  string `toml:"config_path"`
	JournalPath string `toml:"journal_path"`
	QuoteBuffer int    `toml:"quote_buffer"`
}
