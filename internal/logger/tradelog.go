package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// 成交流水旁路：独立于主日志，便于单独归档与对账。

var (
	tradeMu  sync.Mutex
	tradeLog *log.Logger
)

func SetTradeWriter(w io.Writer) {
	tradeMu.Lock()
	defer tradeMu.Unlock()
	if w == nil {
		tradeLog = nil
		return
	}
	tradeLog = log.New(w, "", log.LstdFlags)
}

// LogTrade 记录一条平仓流水。writer 未设置时静默跳过。
func LogTrade(scope, symbol, direction string, quantity int64, entryPrice, exitPrice, pnl, fee float64, exitAt time.Time) {
	tradeMu.Lock()
	out := tradeLog
	tradeMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[TRADE]")
	if scope != "" {
		b.WriteString("[")
		b.WriteString(scope)
		b.WriteString("]")
	}
	b.WriteString(fmt.Sprintf(" %s %s x%d entry=%.4f exit=%.4f pnl=%.2f fee=%.2f at=%s",
		symbol, direction, quantity, entryPrice, exitPrice, pnl, fee, exitAt.UTC().Format(time.RFC3339)))
	out.Print(b.String())
}

// LogOrder 记录一条订单流水。
func LogOrder(scope, symbol, side string, quantity int64, price, fee float64, at time.Time) {
	tradeMu.Lock()
	out := tradeLog
	tradeMu.Unlock()
	if out == nil {
		return
	}
	out.Print(fmt.Sprintf("[ORDER][%s] %s %s x%d price=%.4f fee=%.2f at=%s",
		scope, symbol, side, quantity, price, fee, at.UTC().Format(time.RFC3339)))
}
