package app

import (
	"context"
	"fmt"

	"pulsetrader/internal/backtest"
	"pulsetrader/internal/config"
	"pulsetrader/internal/gateway/binance"
	"pulsetrader/internal/logger"
	"pulsetrader/internal/portfolio"
	backtesthttp "pulsetrader/internal/transport/http/backtest"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动回测与组合服务。
type App struct {
	cfg *config.Config

	candleStore *backtest.Store
	resultStore *backtest.ResultStore
	source      *binance.Source
	fetchSvc    *backtest.Service
	sim         *backtest.Simulator
	httpServer  *backtesthttp.Server

	journal *portfolio.Journal
	loader  *portfolio.Loader
	manager *portfolio.Manager
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与组合行情消费，阻塞直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	a.fetchSvc.SetContext(ctx)
	a.sim.SetContext(ctx)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.manager != nil {
		group.Go(func() error {
			return a.runPortfolio(ctx)
		})
	}

	logger.Infof("✓ pulsetrader 启动（环境=%s，HTTP=%s）", a.cfg.App.Env, a.cfg.App.HTTPAddr)
	return group.Wait()
}

func (a *App) runPortfolio(ctx context.Context) error {
	a.manager.Start(ctx)
	defer a.manager.Stop()
	a.loader.Subscribe(func(snap portfolio.Snapshot) {
		a.manager.Apply(snap)
	})
	quotes, err := a.source.SubscribeQuotes(ctx, a.manager.Symbols(), a.cfg.Portfolio.QuoteBuffer)
	if err != nil {
		return fmt.Errorf("订阅行情失败: %w", err)
	}
	a.manager.Consume(ctx, quotes)
	return nil
}

// Close 释放持有的资源；可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.loader != nil {
		_ = a.loader.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.resultStore != nil {
		_ = a.resultStore.Close()
	}
	if a.candleStore != nil {
		_ = a.candleStore.Close()
	}
}
