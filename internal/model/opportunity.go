package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType indicates the direction of a trading signal.
type SignalType string

const (
	SignalBuy   SignalType = "BUY"
	SignalSell  SignalType = "SELL"
	SignalShort SignalType = "SHORT"
)

// Sentiment is the aggregate market read derived from a scan cycle.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// StrategyInfo identifies a registered strategy.
type StrategyInfo struct {
	ID   string
	Name string
}

// Opportunity is a scored candidate trade produced by applying one strategy
// to a symbol's current data. At most one survives per symbol per scan (the
// highest-confidence signal across strategies). Immutable after creation.
type Opportunity struct {
	Symbol       string
	StrategyID   string
	StrategyName string
	Signal       SignalType
	Confidence   float64 // 0.0 ~ 1.0
	EntryPrice   decimal.Decimal
	TargetPrice  decimal.Decimal
	StopLoss     decimal.Decimal
	RiskReward   float64
	Volume       int64
	Timestamp    time.Time
}

// ScanResult is the outcome of one completed scan cycle. Only the most
// recent result is retained.
type ScanResult struct {
	Timestamp     time.Time
	TotalScanned  int
	Opportunities []Opportunity
	ScanDuration  time.Duration
	Sentiment     Sentiment
}
