package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pulsetrader/internal/logger"
	"pulsetrader/internal/market"
)

// Manager 管理一组策略 actor：资金在注册时一次性划拨，
// 各策略账本完全隔离，同一 symbol 可被多个策略独立持有。
type Manager struct {
	journal *Journal

	mu      sync.RWMutex
	cfg     Config
	runners map[string]*runner
	cancels map[string]context.CancelFunc

	baseCtx context.Context
	started bool
}

func NewManager(cfg Config, journal *Journal) (*Manager, error) {
	if len(cfg.Strategies) == 0 {
		return nil, fmt.Errorf("至少需要一个策略")
	}
	m := &Manager{
		journal: journal,
		cfg:     cfg,
		runners: make(map[string]*runner),
		cancels: make(map[string]context.CancelFunc),
		baseCtx: context.Background(),
	}
	for name, sc := range cfg.Strategies {
		r, err := newRunner(sc, cfg.TotalCapital, cfg.Costs(), journal)
		if err != nil {
			return nil, fmt.Errorf("策略 %s 初始化失败: %w", name, err)
		}
		m.runners[name] = r
	}
	return m, nil
}

// Start 启动全部策略 actor。
func (m *Manager) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.baseCtx = ctx
	for name, r := range m.runners {
		m.startRunner(ctx, name, r)
	}
	m.started = true
	logger.Infof("[portfolio] 启动 %d 个策略，总资金 %.2f", len(m.runners), m.cfg.TotalCapital)
}

// 调用方需持有 m.mu。
func (m *Manager) startRunner(ctx context.Context, name string, r *runner) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancels[name] = cancel
	go r.loop(runCtx)
}

// Dispatch 把一条行情路由给订阅了该 symbol 的所有策略。
// 同一策略内事件按到达顺序串行，策略之间互不等待。
func (m *Manager) Dispatch(quote market.Quote) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runners {
		if !r.subscribed(quote.Symbol) {
			continue
		}
		select {
		case r.ch <- quote:
		default:
			logger.Warnf("[portfolio] %s 行情积压，丢弃 %s", r.cfg.Name, quote.Symbol)
		}
	}
}

// Consume 持续消费行情流直到 ctx 取消或流关闭。
func (m *Manager) Consume(ctx context.Context, quotes <-chan market.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case quote, ok := <-quotes:
			if !ok {
				return
			}
			m.Dispatch(quote)
		}
	}
}

// Symbols 返回全部策略订阅的去重 symbol 列表。
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range m.runners {
		for _, sym := range r.cfg.Symbols {
			seen[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Status 汇总全部策略的状态快照。actor 无响应时跳过（可能正在退出）。
func (m *Manager) Status() []RunnerStatus {
	m.mu.RLock()
	runners := make([]*runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.RUnlock()

	out := make([]RunnerStatus, 0, len(runners))
	for _, r := range runners {
		resp := make(chan RunnerStatus, 1)
		select {
		case r.statusReq <- resp:
			select {
			case st := <-resp:
				out = append(out, st)
			case <-time.After(time.Second):
			}
		case <-time.After(time.Second):
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apply 应用一份新的配置快照：新增的策略上线，消失的策略下线。
// 已在运行的策略不做原地改参，避免污染其独占账本。
func (m *Manager) Apply(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := snap.Config

	for name, cancel := range m.cancels {
		if _, ok := cfg.Strategies[name]; ok {
			continue
		}
		cancel()
		delete(m.cancels, name)
		delete(m.runners, name)
		logger.Infof("[portfolio] 策略 %s 下线 (v%d)", name, snap.Version)
	}

	for name, sc := range cfg.Strategies {
		if _, ok := m.runners[name]; ok {
			continue
		}
		r, err := newRunner(sc, cfg.TotalCapital, cfg.Costs(), m.journal)
		if err != nil {
			logger.Errorf("[portfolio] 策略 %s 上线失败: %v", name, err)
			continue
		}
		m.runners[name] = r
		if m.started {
			m.startRunner(m.baseCtx, name, r)
		}
		logger.Infof("[portfolio] 策略 %s 上线，划拨 %.2f (v%d)", name, r.allocated, snap.Version)
	}
	m.cfg = cfg
}

// Stop 停止全部策略。
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, cancel := range m.cancels {
		cancel()
		delete(m.cancels, name)
	}
	m.started = false
}
