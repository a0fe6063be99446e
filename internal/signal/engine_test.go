package signal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

func barsFromCloses(closes []float64, volume float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	now := time.Now()
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   now.Add(-time.Duration(len(closes)-i) * 5 * time.Minute),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func symbolData(symbol string, bars []model.OHLCV) *model.SymbolData {
	last := bars[len(bars)-1]
	return &model.SymbolData{
		Symbol:    symbol,
		LastPrice: decimal.NewFromFloat(last.Close),
		Bars:      bars,
		Volume:    int64(last.Volume),
		FetchedAt: time.Now(),
	}
}

func TestMeanReversionOversoldBuys(t *testing.T) {
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		price *= 0.99 // steady decline drives RSI toward zero
		closes[i] = price
	}
	data := symbolData("RELIANCE", barsFromCloses(closes, 1000))

	e := NewEngine()
	opp, err := e.Evaluate(context.Background(), StrategyMeanRev, data)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil {
		t.Fatal("expected a buy signal on deep oversold")
	}
	if opp.Signal != model.SignalBuy {
		t.Errorf("signal = %s, want BUY", opp.Signal)
	}
	if opp.Confidence < 0.6 {
		t.Errorf("confidence = %.2f, want >= 0.6", opp.Confidence)
	}
	if !opp.StopLoss.LessThan(opp.EntryPrice) || !opp.EntryPrice.LessThan(opp.TargetPrice) {
		t.Errorf("levels out of order: stop %s entry %s target %s", opp.StopLoss, opp.EntryPrice, opp.TargetPrice)
	}
}

func TestMeanReversionOverboughtSells(t *testing.T) {
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		price *= 1.01
		closes[i] = price
	}
	data := symbolData("TCS", barsFromCloses(closes, 1000))

	e := NewEngine()
	opp, err := e.Evaluate(context.Background(), StrategyMeanRev, data)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil || opp.Signal != model.SignalSell {
		t.Fatalf("opp = %+v, want SELL", opp)
	}
	if !opp.StopLoss.GreaterThan(opp.EntryPrice) || !opp.TargetPrice.LessThan(opp.EntryPrice) {
		t.Errorf("levels out of order for a sell: stop %s entry %s target %s", opp.StopLoss, opp.EntryPrice, opp.TargetPrice)
	}
}

func TestMomentumUptrendBuys(t *testing.T) {
	// gentle sawtooth uptrend keeps RSI in the confirmation zone while the
	// fast average pulls ahead of the slow one
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 0.6
		}
		closes[i] = price
	}
	data := symbolData("INFY", barsFromCloses(closes, 1000))

	e := NewEngine()
	opp, err := e.Evaluate(context.Background(), StrategyMomentum, data)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil {
		t.Fatal("expected a momentum buy in a sawtooth uptrend")
	}
	if opp.Signal != model.SignalBuy {
		t.Errorf("signal = %s, want BUY", opp.Signal)
	}
	if opp.RiskReward != rewardMultiple {
		t.Errorf("risk reward = %.1f, want %.1f", opp.RiskReward, rewardMultiple)
	}
}

func TestBreakoutNeedsVolume(t *testing.T) {
	base := make([]model.OHLCV, 40)
	now := time.Now()
	for i := range base {
		base[i] = model.OHLCV{
			Time:   now.Add(-time.Duration(len(base)-i) * 5 * time.Minute),
			Open:   95,
			High:   100,
			Low:    90,
			Close:  95,
			Volume: 1000,
		}
	}
	// last bar closes at the range high
	base[len(base)-1].Close = 100

	e := NewEngine()

	// without a volume surge there is no breakout
	quiet := symbolData("SBIN", base)
	opp, err := e.Evaluate(context.Background(), StrategyBreakout, quiet)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp != nil {
		t.Fatalf("breakout without volume surge: %+v", opp)
	}

	// with one, the same price action signals
	surge := make([]model.OHLCV, len(base))
	copy(surge, base)
	surge[len(surge)-1].Volume = 5000
	loud := symbolData("SBIN", surge)
	opp, err = e.Evaluate(context.Background(), StrategyBreakout, loud)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if opp == nil || opp.Signal != model.SignalBuy {
		t.Fatalf("opp = %+v, want BUY breakout", opp)
	}
}

func TestFlatMarketProducesNoSignals(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i%2) // tiny oscillation
	}
	data := symbolData("ITC", barsFromCloses(closes, 1000))

	e := NewEngine()
	for _, info := range e.Strategies() {
		opp, err := e.Evaluate(context.Background(), info.ID, data)
		if err != nil {
			t.Fatalf("%s: %v", info.ID, err)
		}
		if opp != nil {
			t.Errorf("%s signalled in a flat market: %+v", info.ID, opp)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEngine()
	data := symbolData("X", barsFromCloses([]float64{100, 101}, 1000))

	if _, err := e.Evaluate(context.Background(), "nosuch", data); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if _, err := e.Evaluate(context.Background(), StrategyMomentum, &model.SymbolData{Symbol: "X"}); err == nil {
		t.Error("expected error for empty data")
	}

	// too few bars is no signal, not an error
	opp, err := e.Evaluate(context.Background(), StrategyMomentum, data)
	if err != nil {
		t.Fatalf("short history: %v", err)
	}
	if opp != nil {
		t.Error("signal from insufficient history")
	}
}

func TestStrategiesRegistry(t *testing.T) {
	e := NewEngine()
	infos := e.Strategies()
	if len(infos) != 3 {
		t.Fatalf("strategies = %d, want 3", len(infos))
	}
	ids := map[string]bool{}
	for _, s := range infos {
		ids[s.ID] = true
	}
	for _, want := range []string{StrategyMomentum, StrategyMeanRev, StrategyBreakout} {
		if !ids[want] {
			t.Errorf("missing strategy %s", want)
		}
	}
}
