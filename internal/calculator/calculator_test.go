package calculator

import (
	"math"
	"testing"

	"PaperPilot/internal/model"
)

func barsFromCloses(closes []float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return bars
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	got, err := SMA(prices, 3)
	if err != nil {
		t.Fatalf("sma: %v", err)
	}
	if got != 5 { // (4+5+6)/3
		t.Errorf("sma = %.2f, want 5", got)
	}

	if _, err := SMA(prices, 10); err == nil {
		t.Error("expected error with insufficient data")
	}
	if _, err := SMA(prices, 0); err == nil {
		t.Error("expected error with zero period")
	}
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	got, err := RSI(barsFromCloses(up), 14)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if got != 100 {
		t.Errorf("rsi on pure uptrend = %.2f, want 100", got)
	}

	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	got, err = RSI(barsFromCloses(down), 14)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if got > 1 {
		t.Errorf("rsi on pure downtrend = %.2f, want ~0", got)
	}
}

func TestRSIDefaultsOnShortHistory(t *testing.T) {
	got, err := RSI(barsFromCloses([]float64{100, 101}), 14)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if got != 50 {
		t.Errorf("rsi = %.2f, want neutral 50", got)
	}
}

func TestRSIBalanced(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%2) // equal gains and losses
	}
	got, err := RSI(barsFromCloses(closes), 14)
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	if math.Abs(got-50) > 5 {
		t.Errorf("rsi on balanced series = %.2f, want ~50", got)
	}
}

func TestRecentRange(t *testing.T) {
	bars := barsFromCloses([]float64{100, 105, 95, 102})
	high, low, err := RecentRange(bars, 10)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if high != 106 || low != 94 { // close +/- 1
		t.Errorf("range = [%.0f, %.0f], want [94, 106]", low, high)
	}

	if _, _, err := RecentRange(nil, 10); err == nil {
		t.Error("expected error with no bars")
	}
}

func TestRangePosition(t *testing.T) {
	pos, err := RangePosition(75, 100, 50)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 0.5 {
		t.Errorf("pos = %.2f, want 0.5", pos)
	}

	// degenerate range reads as midpoint
	pos, err = RangePosition(100, 100, 100)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 0.5 {
		t.Errorf("degenerate pos = %.2f, want 0.5", pos)
	}

	// clamped outside the range
	pos, _ = RangePosition(200, 100, 50)
	if pos != 1 {
		t.Errorf("pos above range = %.2f, want 1", pos)
	}
}

func TestAverageVolume(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3})
	bars[2].Volume = 400
	got, err := AverageVolume(bars, 3)
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if got != 200 { // (100+100+400)/3
		t.Errorf("avg volume = %.0f, want 200", got)
	}
}
