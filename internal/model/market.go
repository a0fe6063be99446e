package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// SymbolData bundles everything the signal engine needs to evaluate one symbol:
// the last traded price plus a window of historical bars.
type SymbolData struct {
	Symbol    string
	LastPrice decimal.Decimal
	Bars      []OHLCV
	Volume    int64
	FetchedAt time.Time
}

// Closes extracts the close series from the bar window.
func (d *SymbolData) Closes() []float64 {
	closes := make([]float64, len(d.Bars))
	for i, b := range d.Bars {
		closes[i] = b.Close
	}
	return closes
}
