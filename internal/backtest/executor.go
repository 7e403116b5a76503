package backtest

import "time"

// Executor 对单个账本执行买卖：应用成本模型、维护持仓、
// 在平仓时生成 Trade 记录。所有被拒绝的订单返回 false 且
// 不产生任何状态变化——资金不足和超卖不是错误，只是拒单。
type Executor struct {
	account *Account
	costs   CostModel

	orders []Order
	trades []Trade
}

func NewExecutor(account *Account, costs CostModel) *Executor {
	return &Executor{account: account, costs: costs}
}

func (e *Executor) Account() *Account { return e.account }

// Orders 返回全部被接受的订单（含开仓）。
func (e *Executor) Orders() []Order { return e.orders }

// Trades 返回平仓记录，顺序即平仓时间顺序。
func (e *Executor) Trades() []Trade { return e.trades }

// Execute 以 quotedPrice 为报价执行一笔订单。对账本而言是原子的：
// 现金、持仓、成交记录要么全部更新，要么全部不变。
func (e *Executor) Execute(symbol string, side Side, quantity int64, quotedPrice float64, ts time.Time) bool {
	if quantity <= 0 || quotedPrice <= 0 {
		return false
	}
	actualPrice := e.costs.SlippagePrice(quotedPrice, side)
	notional := actualPrice * float64(quantity)
	fee := e.costs.Commission(notional)

	switch side {
	case Buy:
		return e.executeBuy(symbol, quantity, actualPrice, notional, fee, ts)
	case Sell:
		return e.executeSell(symbol, quantity, actualPrice, notional, fee, ts)
	default:
		return false
	}
}

func (e *Executor) executeBuy(symbol string, quantity int64, price, notional, fee float64, ts time.Time) bool {
	required := notional + fee
	if !decimalGTE(e.account.Cash, required) {
		return false
	}
	e.account.Cash -= required
	if e.account.Cash < 0 {
		// decimalGTE 已放行，残差只可能是浮点尾数
		e.account.Cash = 0
	}

	if pos := e.account.Position(symbol); pos != nil {
		// 加仓按成交量加权重算平均成本，开仓时间保持首次买入
		oldQty := float64(pos.Quantity)
		newQty := oldQty + float64(quantity)
		pos.EntryPrice = (oldQty*pos.EntryPrice + float64(quantity)*price) / newQty
		pos.Quantity += quantity
		pos.EntryCommission += fee
	} else {
		e.account.setPosition(&Position{
			Symbol:          symbol,
			Quantity:        quantity,
			EntryPrice:      price,
			EntryDate:       ts,
			Direction:       "long",
			EntryCommission: fee,
		})
	}
	e.appendOrder(symbol, Buy, quantity, price, notional, fee, ts)
	return true
}

func (e *Executor) executeSell(symbol string, quantity int64, price, notional, fee float64, ts time.Time) bool {
	pos := e.account.Position(symbol)
	if pos == nil || pos.Quantity < quantity {
		return false
	}
	e.account.Cash += notional - fee

	// 开仓佣金按平仓数量比例分摊到 Trade 上，仅作对账信息，
	// 不参与 pnl 计算（pnl 只扣平仓佣金）。
	entryFee := pos.EntryCommission * float64(quantity) / float64(pos.Quantity)
	pnl := (price-pos.EntryPrice)*float64(quantity) - fee
	e.trades = append(e.trades, Trade{
		Symbol:          symbol,
		Direction:       pos.Direction,
		EntryDate:       pos.EntryDate,
		ExitDate:        ts,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       price,
		Quantity:        quantity,
		PnL:             pnl,
		Commission:      fee,
		EntryCommission: entryFee,
	})

	if pos.Quantity == quantity {
		e.account.removePosition(symbol)
	} else {
		// 部分平仓不改变平均成本与开仓时间
		pos.Quantity -= quantity
		pos.EntryCommission -= entryFee
	}
	e.appendOrder(symbol, Sell, quantity, price, notional, fee, ts)
	return true
}

func (e *Executor) appendOrder(symbol string, side Side, quantity int64, price, notional, fee float64, ts time.Time) {
	e.orders = append(e.orders, Order{
		Symbol:     symbol,
		Side:       string(side),
		Price:      price,
		Quantity:   quantity,
		Notional:   notional,
		Fee:        fee,
		ExecutedAt: ts,
	})
}
