package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pulsetrader/internal/backtest"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type strategyStateModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	Name       string         `gorm:"column:name;uniqueIndex"`
	Strategy   string         `gorm:"column:strategy"`
	ParamsJSON datatypes.JSON `gorm:"column:params_json;type:TEXT"`
	Symbols    string         `gorm:"column:symbols"`
	Allocated  float64        `gorm:"column:allocated"`
	Cash       float64        `gorm:"column:cash"`
	Equity     float64        `gorm:"column:equity"`
	Positions  int            `gorm:"column:positions"`
	UpdatedAt  int64          `gorm:"column:updated_at"`
}

func (strategyStateModel) TableName() string { return "portfolio_strategies" }

type journalOrderModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	Strategy  string  `gorm:"column:strategy;index"`
	Symbol    string  `gorm:"column:symbol"`
	Side      string  `gorm:"column:side"`
	Price     float64 `gorm:"column:price"`
	Quantity  int64   `gorm:"column:quantity"`
	Notional  float64 `gorm:"column:notional"`
	Fee       float64 `gorm:"column:fee"`
	ExecutedAt int64  `gorm:"column:executed_at"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (journalOrderModel) TableName() string { return "portfolio_orders" }

type journalTradeModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	Strategy   string  `gorm:"column:strategy;index"`
	Symbol     string  `gorm:"column:symbol"`
	Direction  string  `gorm:"column:direction"`
	EntryDate  int64   `gorm:"column:entry_date"`
	ExitDate   int64   `gorm:"column:exit_date"`
	EntryPrice float64 `gorm:"column:entry_price"`
	ExitPrice  float64 `gorm:"column:exit_price"`
	Quantity   int64   `gorm:"column:quantity"`
	PnL        float64 `gorm:"column:pnl"`
	Commission float64 `gorm:"column:commission"`
	CreatedAt  int64   `gorm:"column:created_at"`
}

func (journalTradeModel) TableName() string { return "portfolio_trades" }

// Journal 用 Gorm + SQLite 记录组合的成交流水与策略状态。
type Journal struct {
	db *gorm.DB
}

func NewJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&strategyStateModel{}, &journalOrderModel{}, &journalTradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：给并发 HTTP 读留一点余量，同时压低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordOrder 追加一条订单流水。
func (j *Journal) RecordOrder(strategyName string, order backtest.Order) error {
	row := journalOrderModel{
		Strategy:   strategyName,
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		Price:      order.Price,
		Quantity:   order.Quantity,
		Notional:   order.Notional,
		Fee:        order.Fee,
		ExecutedAt: order.ExecutedAt.UnixMilli(),
		CreatedAt:  time.Now().UnixMilli(),
	}
	return j.db.Create(&row).Error
}

// RecordTrade 追加一条平仓记录。
func (j *Journal) RecordTrade(strategyName string, trade backtest.Trade) error {
	row := journalTradeModel{
		Strategy:   strategyName,
		Symbol:     trade.Symbol,
		Direction:  trade.Direction,
		EntryDate:  trade.EntryDate.UnixMilli(),
		ExitDate:   trade.ExitDate.UnixMilli(),
		EntryPrice: trade.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		Quantity:   trade.Quantity,
		PnL:        trade.PnL,
		Commission: trade.Commission,
		CreatedAt:  time.Now().UnixMilli(),
	}
	return j.db.Create(&row).Error
}

// UpsertState 覆写策略的最新状态快照。
func (j *Journal) UpsertState(cfg StrategyConfig, allocated, cash, equity float64, positions int) error {
	params, err := json.Marshal(cfg.Params)
	if err != nil {
		params = []byte("{}")
	}
	row := strategyStateModel{
		Name:       cfg.Name,
		Strategy:   cfg.Strategy,
		ParamsJSON: datatypes.JSON(params),
		Symbols:    strings.Join(cfg.Symbols, ","),
		Allocated:  allocated,
		Cash:       cash,
		Equity:     equity,
		Positions:  positions,
		UpdatedAt:  time.Now().UnixMilli(),
	}
	return j.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"strategy", "params_json", "symbols", "allocated", "cash", "equity", "positions", "updated_at",
		}),
	}).Create(&row).Error
}

// TradeRecord 是对外的成交流水视图。
type TradeRecord struct {
	Strategy   string    `json:"strategy"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   int64     `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
}

// ListTrades 按平仓时间倒序返回某策略（或全部）的成交。
func (j *Journal) ListTrades(strategyName string, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := j.db.Model(&journalTradeModel{}).Order("exit_date DESC").Limit(limit)
	if strategyName != "" {
		query = query.Where("strategy = ?", strategyName)
	}
	var rows []journalTradeModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]TradeRecord, len(rows))
	for i, row := range rows {
		out[i] = TradeRecord{
			Strategy:   row.Strategy,
			Symbol:     row.Symbol,
			Direction:  row.Direction,
			EntryDate:  time.UnixMilli(row.EntryDate),
			ExitDate:   time.UnixMilli(row.ExitDate),
			EntryPrice: row.EntryPrice,
			ExitPrice:  row.ExitPrice,
			Quantity:   row.Quantity,
			PnL:        row.PnL,
			Commission: row.Commission,
		}
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
