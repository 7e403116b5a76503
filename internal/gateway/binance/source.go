package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"pulsetrader/internal/backtest"
	"pulsetrader/internal/logger"
	"pulsetrader/internal/market"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

// Source 基于 go-binance SDK 提供历史 K 线与实时行情。
type Source struct {
	cfg    Config
	client *futures.Client

	mu          sync.Mutex
	quoteCancel context.CancelFunc
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	if final.WSProxyURL != "" {
		futures.SetWsProxyUrl(final.WSProxyURL)
	}
	return &Source{
		cfg:    final,
		client: client,
	}, nil
}

func (s *Source) Name() string { return "binance" }

// Fetch 实现 backtest.CandleSource。
func (s *Source) Fetch(ctx context.Context, req backtest.FetchRequest) ([]market.Candle, error) {
	symbol := cleanSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		// 未收盘的 K 线不落库
		if kl.CloseTime > now {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

// SubscribeQuotes 订阅逐笔成交，转成 Quote 事件流；断线自动重连。
func (s *Source) SubscribeQuotes(ctx context.Context, symbols []string, buffer int) (<-chan market.Quote, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if c := cleanSymbol(sym); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("symbols are required for quote subscription")
	}
	if buffer <= 0 {
		buffer = 1024
	}
	out := make(chan market.Quote, buffer)
	subCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.quoteCancel != nil {
		s.quoteCancel()
	}
	s.quoteCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(out)
		s.runQuoteLoop(subCtx, cleaned, out)
	}()
	return out, nil
}

func (s *Source) runQuoteLoop(ctx context.Context, symbols []string, out chan<- market.Quote) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		handler := func(event *futures.WsAggTradeEvent) {
			quote, ok := convertAggTradeEvent(event)
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- quote:
			default:
				logger.Warnf("[binance] quote channel full, drop %s", quote.Symbol)
			}
		}
		errHandler := func(err error) {
			if err != nil {
				logger.Warnf("[binance] websocket error: %v", err)
			}
		}
		doneC, stopC, err := futures.WsCombinedAggTradeServe(symbols, handler, errHandler)
		if err != nil {
			logger.Warnf("[binance] subscribe failed: %v", err)
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		close(stopC)
		logger.Warnf("[binance] websocket disconnected, reconnecting")
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quoteCancel != nil {
		s.quoteCancel()
		s.quoteCancel = nil
	}
	return nil
}

// cleanSymbol 去掉分隔符并统一大写（ETH/USDT -> ETHUSDT）。
func cleanSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "/", "")
	symbol = strings.ReplaceAll(symbol, "-", "")
	return symbol
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func convertAggTradeEvent(ev *futures.WsAggTradeEvent) (market.Quote, bool) {
	if ev == nil {
		return market.Quote{}, false
	}
	price := parseFloat(ev.Price)
	if price <= 0 {
		return market.Quote{}, false
	}
	symbol := strings.ToUpper(strings.TrimSpace(ev.Symbol))
	if symbol == "" {
		return market.Quote{}, false
	}
	return market.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: parseFloat(ev.Quantity),
		Time:   time.UnixMilli(ev.TradeTime),
	}, true
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
