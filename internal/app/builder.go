package app

import (
	"context"
	"fmt"
	"time"

	"pulsetrader/internal/backtest"
	"pulsetrader/internal/config"
	"pulsetrader/internal/gateway/binance"
	"pulsetrader/internal/logger"
	"pulsetrader/internal/portfolio"
	backtesthttp "pulsetrader/internal/transport/http/backtest"
	livehttp "pulsetrader/internal/transport/http/live"
)

// AppBuilder 按依赖顺序组装应用：存储 → 数据源 → 服务 → HTTP。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	candleStore, err := backtest.NewStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("初始化 K 线存储失败: %w", err)
	}
	resultStore, err := backtest.NewResultStore(cfg.Data.Dir)
	if err != nil {
		candleStore.Close()
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	source, err := binance.New(binance.Config{
		RESTBaseURL:  cfg.Binance.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.Binance.HTTPTimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Binance.ProxyEnabled,
		RESTProxyURL: cfg.Binance.RESTProxyURL,
		WSProxyURL:   cfg.Binance.WSProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 binance 数据源失败: %w", err)
	}

	fetchSvc, err := backtest.NewService(backtest.ServiceConfig{
		Store:           candleStore,
		Sources:         map[string]backtest.CandleSource{"binance": source},
		DefaultExchange: cfg.Fetch.DefaultExchange,
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		MaxBatch:        cfg.Fetch.MaxBatch,
		MaxConcurrent:   cfg.Fetch.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化拉取服务失败: %w", err)
	}

	sim, err := backtest.NewSimulator(backtest.SimulatorConfig{
		CandleStore:    candleStore,
		ResultStore:    resultStore,
		Fetcher:        fetchSvc,
		MaxConcurrent:  cfg.Backtest.MaxConcurrent,
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageRate:   cfg.Backtest.SlippageRate,
		MinCommission:  cfg.Backtest.MinCommission,
		LotSize:        cfg.Backtest.LotSize,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化模拟器失败: %w", err)
	}

	app := &App{
		cfg:         cfg,
		candleStore: candleStore,
		resultStore: resultStore,
		source:      source,
		fetchSvc:    fetchSvc,
		sim:         sim,
	}

	var liveRouter *livehttp.Router
	if cfg.Portfolio.Enabled {
		if err := b.buildPortfolio(app); err != nil {
			return nil, err
		}
		liveRouter = livehttp.NewRouter(app.manager, app.journal)
	}

	httpServer, err := backtesthttp.NewServer(backtesthttp.Config{
		Addr:         cfg.App.HTTPAddr,
		Svc:          fetchSvc,
		Simulator:    sim,
		Results:      resultStore,
		RiskFreeRate: cfg.Backtest.RiskFreeRate,
		Live:         liveRouter,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}
	app.httpServer = httpServer
	return app, nil
}

func (b *AppBuilder) buildPortfolio(app *App) error {
	cfg := b.cfg
	journal, err := portfolio.NewJournal(cfg.Portfolio.JournalPath)
	if err != nil {
		return fmt.Errorf("初始化组合流水失败: %w", err)
	}
	loader, err := portfolio.NewLoader(cfg.Portfolio.ConfigPath)
	if err != nil {
		journal.Close()
		return fmt.Errorf("加载组合配置失败: %w", err)
	}
	manager, err := portfolio.NewManager(loader.Snapshot().Config, journal)
	if err != nil {
		loader.Close()
		journal.Close()
		return fmt.Errorf("初始化组合管理器失败: %w", err)
	}
	app.journal = journal
	app.loader = loader
	app.manager = manager
	logger.Infof("✓ 组合模式启用：%d 个策略", len(loader.Snapshot().Config.Strategies))
	return nil
}
