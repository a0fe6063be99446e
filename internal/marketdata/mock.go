package marketdata

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

// MockProvider serves canned prices and bars for testing and dry runs.
type MockProvider struct {
	mu     sync.Mutex
	Prices map[string]decimal.Decimal
	Bars   map[string][]model.OHLCV
	Errs   map[string]error

	LTPCalls   int
	OHLCVCalls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prices: make(map[string]decimal.Decimal),
		Bars:   make(map[string][]model.OHLCV),
		Errs:   make(map[string]error),
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) GetLTP(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LTPCalls++
	if err, ok := m.Errs[symbol]; ok {
		return decimal.Zero, err
	}
	price, ok := m.Prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("mock ltp %s: %w", symbol, ErrNoData)
	}
	return price, nil
}

func (m *MockProvider) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OHLCVCalls++
	if err, ok := m.Errs[symbol]; ok {
		return nil, err
	}
	bars, ok := m.Bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("mock ohlcv %s: %w", symbol, ErrNoData)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]model.OHLCV, len(bars))
	copy(out, bars)
	return out, nil
}

// SetError makes every subsequent call for symbol fail with err. Passing nil
// clears the failure.
func (m *MockProvider) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Errs, symbol)
		return
	}
	m.Errs[symbol] = err
}

// GenerateBars produces n synthetic candles ending at end, drifting from
// start price at the given per-bar rate with a small oscillation.
func GenerateBars(start float64, n int, drift float64, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	price := start
	for i := 0; i < n; i++ {
		wobble := math.Sin(float64(i)*0.7) * start * 0.002
		open := price
		close := price*(1+drift) + wobble
		high := math.Max(open, close) * 1.003
		low := math.Min(open, close) * 0.997
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(n-i) * 5 * time.Minute),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 100000 + float64(i%7)*15000,
		}
		price = close
	}
	return bars
}
