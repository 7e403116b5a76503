package market

import "time"

// Quote 表示一次实时行情更新，驱动多策略管理器的事件流。
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// QuoteHandler 消费行情更新；同一订阅内的回调按到达顺序串行执行。
type QuoteHandler func(Quote)
