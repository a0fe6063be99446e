package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a strategy-attributed trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// StrategyTrade links a broker order to the strategy that produced it, so
// P&L can be attributed per strategy when the trade closes.
type StrategyTrade struct {
	TradeID    string // the broker order id of the entry fill
	StrategyID string
	Symbol     string
	Side       OrderSide
	EntryPrice decimal.Decimal
	Quantity   int64
	Target     decimal.Decimal
	StopLoss   decimal.Decimal
	EntryTime  time.Time
	ExitPrice  decimal.Decimal
	ExitTime   time.Time
	PnL        decimal.Decimal
	Status     TradeStatus
}

// StrategyPerformance accumulates per-strategy results. Updated only by the
// orchestrator when a strategy-attributed trade closes.
type StrategyPerformance struct {
	StrategyID        string
	StrategyName      string
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	TotalPnL          decimal.Decimal
	WinRate           float64
	AvgProfitPerTrade decimal.Decimal
	MaxDrawdown       decimal.Decimal
	ActivePositions   int
	LastSignalTime    time.Time
}
