package signal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/calculator"
	"PaperPilot/internal/model"
)

const (
	StrategyMomentum = "momentum"
	StrategyMeanRev  = "meanrev"
	StrategyBreakout = "breakout"

	fastPeriod     = 10
	slowPeriod     = 30
	rsiPeriod      = 14
	rangePeriod    = 30
	stopLookback   = 10
	rewardMultiple = 2.0
)

// Engine implements Provider with three built-in rule strategies. Each
// strategy is a pure function of the symbol data, so repeated evaluation of
// the same snapshot yields the same opportunity.
type Engine struct {
	strategies []model.StrategyInfo
}

func NewEngine() *Engine {
	return &Engine{
		strategies: []model.StrategyInfo{
			{ID: StrategyMomentum, Name: "Momentum Crossover"},
			{ID: StrategyMeanRev, Name: "RSI Mean Reversion"},
			{ID: StrategyBreakout, Name: "Range Breakout"},
		},
	}
}

func (e *Engine) Strategies() []model.StrategyInfo {
	out := make([]model.StrategyInfo, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// Evaluate runs one strategy against a symbol snapshot. A nil opportunity
// with nil error means no setup.
func (e *Engine) Evaluate(ctx context.Context, strategyID string, data *model.SymbolData) (*model.Opportunity, error) {
	if data == nil || len(data.Bars) == 0 {
		return nil, fmt.Errorf("evaluate %s: no bars", strategyID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strategyID {
	case StrategyMomentum:
		return e.momentum(data)
	case StrategyMeanRev:
		return e.meanReversion(data)
	case StrategyBreakout:
		return e.breakout(data)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategyID)
	}
}

// momentum signals when the fast SMA crosses beyond the slow SMA while RSI
// confirms the move is not already exhausted.
func (e *Engine) momentum(data *model.SymbolData) (*model.Opportunity, error) {
	closes := data.Closes()
	if len(closes) < slowPeriod {
		return nil, nil
	}

	fast, err := calculator.SMA(closes, fastPeriod)
	if err != nil {
		return nil, err
	}
	slow, err := calculator.SMA(closes, slowPeriod)
	if err != nil {
		return nil, err
	}
	rsi, err := calculator.RSI(data.Bars, rsiPeriod)
	if err != nil {
		return nil, err
	}

	price := data.LastPrice.InexactFloat64()
	if price <= 0 {
		price = closes[len(closes)-1]
	}
	spread := (fast - slow) / slow

	switch {
	case spread > 0.01 && rsi >= 50 && rsi <= 70:
		stop := lowestLow(data.Bars, stopLookback)
		if stop >= price {
			return nil, nil
		}
		conf := clamp01(0.55 + spread*10 + (rsi-50)/200)
		return e.build(data, StrategyMomentum, "Momentum Crossover", model.SignalBuy, conf, price, stop), nil
	case spread < -0.01 && rsi >= 30 && rsi <= 50:
		stop := highestHigh(data.Bars, stopLookback)
		if stop <= price {
			return nil, nil
		}
		conf := clamp01(0.55 + math.Abs(spread)*10 + (50-rsi)/200)
		return e.build(data, StrategyMomentum, "Momentum Crossover", model.SignalSell, conf, price, stop), nil
	}
	return nil, nil
}

// meanReversion buys deep oversold and sells deep overbought readings,
// with conviction scaling by how far RSI is from the trigger level.
func (e *Engine) meanReversion(data *model.SymbolData) (*model.Opportunity, error) {
	if len(data.Bars) <= rsiPeriod {
		return nil, nil
	}
	rsi, err := calculator.RSI(data.Bars, rsiPeriod)
	if err != nil {
		return nil, err
	}

	price := data.LastPrice.InexactFloat64()
	if price <= 0 {
		price = data.Bars[len(data.Bars)-1].Close
	}

	switch {
	case rsi < 30:
		stop := lowestLow(data.Bars, stopLookback) * 0.99
		if stop >= price {
			return nil, nil
		}
		conf := clamp01(0.60 + (30-rsi)/50)
		return e.build(data, StrategyMeanRev, "RSI Mean Reversion", model.SignalBuy, conf, price, stop), nil
	case rsi > 70:
		stop := highestHigh(data.Bars, stopLookback) * 1.01
		if stop <= price {
			return nil, nil
		}
		conf := clamp01(0.60 + (rsi-70)/50)
		return e.build(data, StrategyMeanRev, "RSI Mean Reversion", model.SignalSell, conf, price, stop), nil
	}
	return nil, nil
}

// breakout buys a close within 1% of the range high on elevated volume.
func (e *Engine) breakout(data *model.SymbolData) (*model.Opportunity, error) {
	high, low, err := calculator.RecentRange(data.Bars, rangePeriod)
	if err != nil {
		return nil, nil
	}
	avgVol, err := calculator.AverageVolume(data.Bars, rangePeriod)
	if err != nil || avgVol <= 0 {
		return nil, nil
	}

	price := data.LastPrice.InexactFloat64()
	if price <= 0 {
		price = data.Bars[len(data.Bars)-1].Close
	}
	lastVol := data.Bars[len(data.Bars)-1].Volume

	pos, err := calculator.RangePosition(price, high, low)
	if err != nil {
		return nil, nil
	}
	volRatio := lastVol / avgVol

	if pos < 0.99 || volRatio < 1.5 {
		return nil, nil
	}
	stop := lowestLow(data.Bars, stopLookback)
	if stop >= price {
		return nil, nil
	}
	conf := clamp01(0.60 + (pos-0.99)*5 + (volRatio-1.5)/10)
	return e.build(data, StrategyBreakout, "Range Breakout", model.SignalBuy, conf, price, stop), nil
}

// build assembles an opportunity with the target projected at a fixed
// multiple of the entry-to-stop risk.
func (e *Engine) build(data *model.SymbolData, id, name string, sig model.SignalType, conf, price, stop float64) *model.Opportunity {
	risk := math.Abs(price - stop)
	var target float64
	if sig == model.SignalBuy {
		target = price + rewardMultiple*risk
	} else {
		target = price - rewardMultiple*risk
	}

	return &model.Opportunity{
		Symbol:       data.Symbol,
		StrategyID:   id,
		StrategyName: name,
		Signal:       sig,
		Confidence:   conf,
		EntryPrice:   decimal.NewFromFloat(price).Round(2),
		TargetPrice:  decimal.NewFromFloat(target).Round(2),
		StopLoss:     decimal.NewFromFloat(stop).Round(2),
		RiskReward:   rewardMultiple,
		Volume:       data.Volume,
		Timestamp:    time.Now(),
	}
}

func lowestLow(bars []model.OHLCV, n int) float64 {
	if len(bars) < n {
		n = len(bars)
	}
	low := math.MaxFloat64
	for _, b := range bars[len(bars)-n:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

func highestHigh(bars []model.OHLCV, n int) float64 {
	if len(bars) < n {
		n = len(bars)
	}
	high := 0.0
	for _, b := range bars[len(bars)-n:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
