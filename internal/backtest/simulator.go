package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulsetrader/internal/logger"
	"pulsetrader/internal/market"
	"pulsetrader/internal/strategy"

	"github.com/google/uuid"
)

// 默认回测参数，与配置缺省保持一致。
const (
	DefaultInitialCapital = 100000.0
	DefaultCommissionRate = 0.001
	DefaultSlippageRate   = 0.001
	DefaultMinCommission  = 5.0
	DefaultLotSize        = int64(1)
	DefaultTimeframe      = "1d"
	DefaultStrategy       = "ma_cross"
)

type SimulatorConfig struct {
	CandleStore   *Store
	ResultStore   *ResultStore
	Fetcher       *Service
	MaxConcurrent int

	// 配置层给出的回测缺省；零值回落到包级常量。
	InitialCapital float64
	CommissionRate float64
	SlippageRate   float64
	MinCommission  float64
	LotSize        int64
}

// runDefaults 是请求未显式给出字段时的回落值。
type runDefaults struct {
	initialCapital float64
	commissionRate float64
	slippageRate   float64
	minCommission  float64
	lot            int64
}

// Simulator 负责将历史 K 线 + 信号策略推演为资金曲线。
type Simulator struct {
	store    *Store
	results  *ResultStore
	fetcher  *Service
	defaults runDefaults

	sem     chan struct{}
	baseCtx context.Context
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.CandleStore == nil {
		return nil, fmt.Errorf("candle store 不能为空")
	}
	if cfg.ResultStore == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	defaults := runDefaults{
		initialCapital: cfg.InitialCapital,
		commissionRate: cfg.CommissionRate,
		slippageRate:   cfg.SlippageRate,
		minCommission:  cfg.MinCommission,
		lot:            cfg.LotSize,
	}
	if defaults.initialCapital <= 0 {
		defaults.initialCapital = DefaultInitialCapital
	}
	if defaults.commissionRate <= 0 {
		defaults.commissionRate = DefaultCommissionRate
	}
	if defaults.slippageRate <= 0 {
		defaults.slippageRate = DefaultSlippageRate
	}
	if defaults.minCommission <= 0 {
		defaults.minCommission = DefaultMinCommission
	}
	if defaults.lot <= 0 {
		defaults.lot = DefaultLotSize
	}
	return &Simulator{
		store:    cfg.CandleStore,
		results:  cfg.ResultStore,
		fetcher:  cfg.Fetcher,
		defaults: defaults,
		sem:      make(chan struct{}, maxConcurrent),
		baseCtx:  context.Background(),
	}, nil
}

func (s *Simulator) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Simulator) ctx() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// StartRun 创建回测任务并立即返回，模拟过程在后台进行。
func (s *Simulator) StartRun(req RunRequest) (Run, error) {
	if req.Symbol == "" {
		return Run{}, fmt.Errorf("symbol 不能为空")
	}
	strategyName := req.Strategy
	if strategyName == "" {
		strategyName = DefaultStrategy
	}
	// 提交时即构建一次策略，参数错误直接拒绝。
	if _, err := strategy.New(strategyName, req.Params); err != nil {
		return Run{}, err
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return Run{}, fmt.Errorf("timeframe 无效: %w", err)
	}
	start, end := tf.AlignRange(req.StartTS, req.EndTS)
	if start <= 0 || end <= 0 || end <= start {
		return Run{}, fmt.Errorf("start/end 非法")
	}
	initialCapital := req.InitialCapital
	if initialCapital <= 0 {
		initialCapital = s.defaults.initialCapital
	}
	commissionRate := s.defaults.commissionRate
	if req.CommissionRate != nil {
		if *req.CommissionRate < 0 {
			return Run{}, fmt.Errorf("commission_rate 不能为负")
		}
		commissionRate = *req.CommissionRate
	}
	slippageRate := s.defaults.slippageRate
	if req.SlippageRate != nil {
		if *req.SlippageRate < 0 {
			return Run{}, fmt.Errorf("slippage_rate 不能为负")
		}
		slippageRate = *req.SlippageRate
	}
	minCommission := s.defaults.minCommission
	if req.MinCommission != nil {
		if *req.MinCommission < 0 {
			return Run{}, fmt.Errorf("min_commission 不能为负")
		}
		minCommission = *req.MinCommission
	}
	lot := req.LotSize
	if lot <= 0 {
		lot = s.defaults.lot
	}

	cfg := RunConfig{
		Symbol:         strings.ToUpper(req.Symbol),
		Strategy:       strategyName,
		Params:         req.Params,
		Timeframe:      tf.Key,
		StartTS:        start,
		EndTS:          end,
		InitialCapital: initialCapital,
		CommissionRate: commissionRate,
		SlippageRate:   slippageRate,
		MinCommission:  minCommission,
		LotSize:        lot,
	}

	run := Run{
		ID:             uuid.NewString(),
		Symbol:         cfg.Symbol,
		Strategy:       strategyName,
		Status:         RunStatusPending,
		StartTS:        start,
		EndTS:          end,
		Timeframe:      tf.Key,
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
		Config:         cfg,
		Stats: RunStats{
			FinalValue: initialCapital,
		},
		CreatedAt: time.Now(),
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	go s.runLoop(run.ID, cfg)
	return run, nil
}

func (s *Simulator) runLoop(runID string, cfg RunConfig) {
	select {
	case s.sem <- struct{}{}:
	default:
		logger.Warnf("[backtest] run %s 等待可用 worker", runID)
		s.sem <- struct{}{}
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "加载历史数据…")
	if err := s.execute(ctx, runID, cfg); err != nil {
		logger.Warnf("[backtest] run %s 失败: %v", runID, err)
		_ = s.results.UpdateRunStatus(ctx, runID, RunStatusFailed, err.Error())
	}
}

func (s *Simulator) execute(ctx context.Context, runID string, cfg RunConfig) error {
	if err := s.ensureData(ctx, cfg); err != nil {
		return err
	}
	candles, err := s.store.RangeCandles(ctx, cfg.Symbol, cfg.Timeframe, cfg.StartTS, cfg.EndTS)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("区间内没有 %s %s K 线", cfg.Symbol, cfg.Timeframe)
	}

	strat, err := strategy.New(cfg.Strategy, cfg.Params)
	if err != nil {
		return err
	}
	signals := strat.GenerateSignals(candles)
	if len(signals) != len(candles) {
		return fmt.Errorf("策略 %s 返回 %d 个信号，期望 %d", cfg.Strategy, len(signals), len(candles))
	}
	series := buildSeries(candles, signals)

	engine, err := NewEngine(EngineConfig{
		InitialCapital: cfg.InitialCapital,
		Costs:          cfg.Costs(),
		LotSize:        cfg.LotSize,
	})
	if err != nil {
		return err
	}
	finalValue, err := engine.Run(cfg.Symbol, series)
	if err != nil {
		return err
	}

	for _, order := range engine.Orders() {
		if _, err := s.results.InsertOrder(ctx, runID, order); err != nil {
			return fmt.Errorf("写入订单失败: %w", err)
		}
	}
	for _, trade := range engine.Trades() {
		if _, err := s.results.InsertTrade(ctx, runID, trade); err != nil {
			return fmt.Errorf("写入交易失败: %w", err)
		}
	}
	for _, pt := range engine.EquityCurve() {
		if _, err := s.results.InsertEquity(ctx, runID, pt); err != nil {
			return fmt.Errorf("写入资金曲线失败: %w", err)
		}
	}

	stats := summarize(cfg.InitialCapital, finalValue, engine)
	if err := s.results.UpdateRunSummary(ctx, runID, RunStatusDone, stats, "回测完成"); err != nil {
		return err
	}
	logger.Infof("[backtest] run %s 完成：final=%.2f return=%.2f%% trades=%d",
		runID, stats.FinalValue, stats.ReturnPct, stats.Trades)
	return nil
}

// ensureData 在回测前确保本地数据完整；没有配置拉取服务时跳过。
func (s *Simulator) ensureData(ctx context.Context, cfg RunConfig) error {
	if s.fetcher == nil {
		return nil
	}
	job, err := s.fetcher.SubmitFetch(FetchParams{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		Start:     cfg.StartTS,
		End:       cfg.EndTS,
	})
	if err != nil {
		return err
	}
	if job.Status == JobStatusDone {
		return nil
	}
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, ok := s.fetcher.JobSnapshot(job.ID)
			if !ok {
				continue
			}
			switch snap.Status {
			case JobStatusDone:
				return nil
			case JobStatusFailed:
				if snap.Message != "" {
					return fmt.Errorf("下载 %s %s 失败: %s", cfg.Symbol, cfg.Timeframe, snap.Message)
				}
				return fmt.Errorf("下载 %s %s 失败", cfg.Symbol, cfg.Timeframe)
			case JobStatusPartial:
				logger.Warnf("[backtest] %s %s 数据仍有缺口=%d，按现有数据回测", cfg.Symbol, cfg.Timeframe, len(snap.Missing))
				return nil
			}
		}
	}
}

// buildSeries 以收盘时间、收盘价为执行点。
func buildSeries(candles []market.Candle, signals []int) []SignalPoint {
	series := make([]SignalPoint, len(candles))
	for i, c := range candles {
		series[i] = SignalPoint{
			Time:   time.UnixMilli(c.CloseTime).UTC(),
			Price:  c.Close,
			Signal: signals[i],
		}
	}
	return series
}

func summarize(initialCapital, finalValue float64, engine *Engine) RunStats {
	stats := RunStats{
		FinalValue: finalValue,
		Profit:     finalValue - initialCapital,
		Orders:     len(engine.Orders()),
		Trades:     len(engine.Trades()),
		Snapshots:  len(engine.EquityCurve()),
		FinishedAt: time.Now(),
	}
	if initialCapital > 0 {
		stats.ReturnPct = (finalValue/initialCapital - 1) * 100
	}
	for _, trade := range engine.Trades() {
		if trade.PnL > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	if stats.Trades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Trades) * 100
	}
	peak := initialCapital
	valley := initialCapital
	maxDD := 0.0
	for _, pt := range engine.EquityCurve() {
		v := pt.TotalValue
		if v > peak {
			peak = v
		}
		if v < valley {
			valley = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	stats.EquityPeak = peak
	stats.EquityValley = valley
	stats.MaxDrawdownPct = maxDD
	return stats
}
