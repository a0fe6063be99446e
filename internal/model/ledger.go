package model

import "github.com/shopspring/decimal"

// AccountLedger is a read projection of the virtual broker's money state.
type AccountLedger struct {
	CashBalance         decimal.Decimal
	AvailableMargin     decimal.Decimal
	UsedMargin          decimal.Decimal
	InitialBalance      decimal.Decimal
	TotalCommissionPaid decimal.Decimal
	PeakValue           decimal.Decimal
	MaxDrawdown         decimal.Decimal
	MaxDrawdownPct      decimal.Decimal
}

// PaperStats summarizes paper-trading performance.
type PaperStats struct {
	InitialBalance      decimal.Decimal
	CurrentBalance      decimal.Decimal
	AvailableMargin     decimal.Decimal
	UsedMargin          decimal.Decimal
	UnrealizedPnL       decimal.Decimal
	RealizedPnL         decimal.Decimal
	TotalReturnPct      decimal.Decimal
	TotalTrades         int
	WinningTrades       int
	LosingTrades        int
	WinRate             float64
	TotalCommissionPaid decimal.Decimal
	MaxDrawdown         decimal.Decimal
	MaxDrawdownPct      decimal.Decimal
	ActivePositions     int
	PendingOrders       int
}

// ResetResult is returned by the broker after a portfolio reset.
type ResetResult struct {
	FinalStats PaperStats
	NewBalance decimal.Decimal
}
