package portfolio

import (
	"context"

	"pulsetrader/internal/backtest"
	"pulsetrader/internal/logger"
	"pulsetrader/internal/market"
	"pulsetrader/internal/strategy"
)

// runner 是单个策略的 actor：独占自己的资金与持仓账本，
// 行情事件经由私有 channel 串行处理，不持任何锁。
type runner struct {
	cfg       StrategyConfig
	allocated float64
	costs     backtest.CostModel

	strat    strategy.Strategy
	account  *backtest.Account
	executor *backtest.Executor
	journal  *Journal

	ch        chan market.Quote
	statusReq chan chan RunnerStatus
	window    map[string][]market.Candle
	lastPrice map[string]float64

	// 已写入 journal 的流水游标
	loggedOrders int
	loggedTrades int
}

func newRunner(cfg StrategyConfig, totalCapital float64, costs backtest.CostModel, journal *Journal) (*runner, error) {
	strat, err := strategy.New(cfg.Strategy, cfg.Params)
	if err != nil {
		return nil, err
	}
	allocated := totalCapital * cfg.CapitalAllocation
	account := backtest.NewAccount(allocated)
	return &runner{
		cfg:       cfg,
		allocated: allocated,
		costs:     costs,
		strat:     strat,
		account:   account,
		executor:  backtest.NewExecutor(account, costs),
		journal:   journal,
		ch:        make(chan market.Quote, 256),
		statusReq: make(chan chan RunnerStatus),
		window:    make(map[string][]market.Candle, len(cfg.Symbols)),
		lastPrice: make(map[string]float64, len(cfg.Symbols)),
	}, nil
}

func (r *runner) subscribed(symbol string) bool {
	for _, s := range r.cfg.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func (r *runner) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case quote, ok := <-r.ch:
			if !ok {
				return
			}
			r.handle(quote)
		case resp := <-r.statusReq:
			resp <- r.status()
		}
	}
}

// RunnerStatus 是策略状态的只读快照。
type RunnerStatus struct {
	Name      string   `json:"name"`
	Strategy  string   `json:"strategy"`
	Symbols   []string `json:"symbols"`
	Allocated float64  `json:"allocated"`
	Cash      float64  `json:"cash"`
	Equity    float64  `json:"equity"`
	Positions int      `json:"positions"`
	Orders    int      `json:"orders"`
	Trades    int      `json:"trades"`
}

func (r *runner) status() RunnerStatus {
	return RunnerStatus{
		Name:      r.cfg.Name,
		Strategy:  r.cfg.Strategy,
		Symbols:   append([]string(nil), r.cfg.Symbols...),
		Allocated: r.allocated,
		Cash:      r.account.Cash,
		Equity:    r.equity(),
		Positions: r.account.PositionCount(),
		Orders:    len(r.executor.Orders()),
		Trades:    len(r.executor.Trades()),
	}
}

func (r *runner) handle(quote market.Quote) {
	r.lastPrice[quote.Symbol] = quote.Price

	win := append(r.window[quote.Symbol], market.Candle{
		OpenTime:  quote.Time.UnixMilli(),
		CloseTime: quote.Time.UnixMilli(),
		Open:      quote.Price,
		High:      quote.Price,
		Low:       quote.Price,
		Close:     quote.Price,
		Volume:    quote.Volume,
	})
	if len(win) > r.cfg.Window {
		win = win[len(win)-r.cfg.Window:]
	}
	r.window[quote.Symbol] = win

	signals := r.strat.GenerateSignals(win)
	if len(signals) == 0 {
		return
	}
	signal := signals[len(signals)-1]

	switch {
	case signal > 0 && !r.account.HasPosition(quote.Symbol):
		buyPrice := r.costs.SlippagePrice(quote.Price, backtest.Buy)
		qty := backtest.SizeOrder(r.account.Cash, buyPrice, r.cfg.LotSize)
		if qty <= 0 {
			return
		}
		if r.executor.Execute(quote.Symbol, backtest.Buy, qty, quote.Price, quote.Time) {
			logger.Infof("[portfolio] %s 买入 %s x%d @%.4f", r.cfg.Name, quote.Symbol, qty, buyPrice)
			r.flushJournal()
		}
	case signal < 0 && r.account.HasPosition(quote.Symbol):
		qty := r.account.Position(quote.Symbol).Quantity
		if r.executor.Execute(quote.Symbol, backtest.Sell, qty, quote.Price, quote.Time) {
			logger.Infof("[portfolio] %s 卖出 %s x%d @%.4f", r.cfg.Name, quote.Symbol, qty, quote.Price)
			r.flushJournal()
		}
	}
}

// flushJournal 把新增的订单/成交追加进流水，并刷新状态快照。
func (r *runner) flushJournal() {
	if r.journal == nil {
		return
	}
	orders := r.executor.Orders()
	for ; r.loggedOrders < len(orders); r.loggedOrders++ {
		order := orders[r.loggedOrders]
		logger.LogOrder(r.cfg.Name, order.Symbol, string(order.Side), order.Quantity, order.Price, order.Fee, order.ExecutedAt)
		if err := r.journal.RecordOrder(r.cfg.Name, order); err != nil {
			logger.Warnf("[portfolio] %s 订单落库失败: %v", r.cfg.Name, err)
		}
	}
	trades := r.executor.Trades()
	for ; r.loggedTrades < len(trades); r.loggedTrades++ {
		trade := trades[r.loggedTrades]
		logger.LogTrade(r.cfg.Name, trade.Symbol, trade.Direction, trade.Quantity,
			trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.Commission, trade.ExitDate)
		if err := r.journal.RecordTrade(r.cfg.Name, trade); err != nil {
			logger.Warnf("[portfolio] %s 成交落库失败: %v", r.cfg.Name, err)
		}
	}
	if err := r.journal.UpsertState(r.cfg, r.allocated, r.account.Cash, r.equity(), r.account.PositionCount()); err != nil {
		logger.Warnf("[portfolio] %s 状态落库失败: %v", r.cfg.Name, err)
	}
}

func (r *runner) equity() float64 {
	return r.account.Cash + r.account.MarketValue(r.lastPrice)
}
