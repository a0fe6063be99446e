package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/broker"
	"PaperPilot/internal/marketdata"
	"PaperPilot/internal/model"
	"PaperPilot/internal/recorder"
	"PaperPilot/internal/risk"
)

// Options tunes which opportunities the orchestrator acts on.
type Options struct {
	MinConfidence           float64
	MinRiskReward           float64
	MaxPositionsPerStrategy int
	Commission              decimal.Decimal // flat fee per order, deducted twice per round trip
}

// Skipped pairs a rejected opportunity with the reason it was not traded.
type Skipped struct {
	Opportunity model.Opportunity
	Reason      string
}

// Report summarizes one pass over a scan's opportunities.
type Report struct {
	Executed []model.StrategyTrade
	Skipped  []Skipped
}

// Orchestrator turns scan opportunities into paper trades and attributes
// every closed trade back to the strategy that produced it.
type Orchestrator struct {
	broker   *broker.PaperBroker
	risk     *risk.Manager
	provider marketdata.Provider
	rec      recorder.Recorder
	opts     Options

	mu          sync.Mutex
	autoTrading bool
	active      map[string]model.StrategyTrade // keyed by entry order id
	performance map[string]*model.StrategyPerformance
	pnlPeaks    map[string]decimal.Decimal // per-strategy cumulative P&L peak
}

func New(b *broker.PaperBroker, r *risk.Manager, provider marketdata.Provider, rec recorder.Recorder, opts Options) *Orchestrator {
	return &Orchestrator{
		broker:      b,
		risk:        r,
		provider:    provider,
		rec:         rec,
		opts:        opts,
		autoTrading: true,
		active:      make(map[string]model.StrategyTrade),
		performance: make(map[string]*model.StrategyPerformance),
		pnlPeaks:    make(map[string]decimal.Decimal),
	}
}

// EnableAutoTrading resumes acting on opportunities.
func (o *Orchestrator) EnableAutoTrading() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoTrading = true
	log.Printf("[INFO] auto trading enabled")
}

// DisableAutoTrading stops new entries; open trades are still managed.
func (o *Orchestrator) DisableAutoTrading() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoTrading = false
	log.Printf("[INFO] auto trading disabled")
}

// AutoTradingEnabled reports whether new entries are being taken.
func (o *Orchestrator) AutoTradingEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoTrading
}

// ProcessOpportunities evaluates each opportunity against the entry rules
// and places orders for those that qualify. Every rejection carries an
// attributable reason.
func (o *Orchestrator) ProcessOpportunities(ctx context.Context, opportunities []model.Opportunity) Report {
	report := Report{}

	for _, opp := range opportunities {
		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, Skipped{opp, "shutting down"})
			continue
		}
		trade, reason := o.tryEnter(opp)
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{opp, reason})
			continue
		}
		report.Executed = append(report.Executed, trade)
	}

	if len(report.Executed) > 0 || len(report.Skipped) > 0 {
		log.Printf("[INFO] processed %d opportunities: %d executed, %d skipped",
			len(report.Executed)+len(report.Skipped), len(report.Executed), len(report.Skipped))
	}
	return report
}

// tryEnter returns the opened trade, or an empty trade with a skip reason.
func (o *Orchestrator) tryEnter(opp model.Opportunity) (model.StrategyTrade, string) {
	if !o.AutoTradingEnabled() {
		return model.StrategyTrade{}, "auto trading disabled"
	}
	if opp.Confidence < o.opts.MinConfidence {
		return model.StrategyTrade{}, fmt.Sprintf("confidence %.2f below %.2f", opp.Confidence, o.opts.MinConfidence)
	}
	if opp.RiskReward < o.opts.MinRiskReward {
		return model.StrategyTrade{}, fmt.Sprintf("risk/reward %.2f below %.2f", opp.RiskReward, o.opts.MinRiskReward)
	}
	switch opp.Signal {
	case model.SignalShort:
		return model.StrategyTrade{}, "short selling not supported"
	case model.SignalSell:
		return model.StrategyTrade{}, "sell signals close positions via exit evaluation"
	}

	if n := o.strategyActiveCount(opp.StrategyID); o.opts.MaxPositionsPerStrategy > 0 && n >= o.opts.MaxPositionsPerStrategy {
		return model.StrategyTrade{}, fmt.Sprintf("strategy %s at position limit (%d)", opp.StrategyID, o.opts.MaxPositionsPerStrategy)
	}

	ledger := o.broker.GetAccountBalance()
	qty, err := o.risk.CalculatePositionSize(opp.EntryPrice, opp.StopLoss, ledger.AvailableMargin)
	if err != nil {
		return model.StrategyTrade{}, fmt.Sprintf("position sizing: %v", err)
	}

	order := model.NewOrder(opp.Symbol, model.SideBuy, model.OrderMarket, qty, opp.EntryPrice)
	order.StopLoss = opp.StopLoss
	order.Target = opp.TargetPrice

	if ok, reason := o.risk.ValidateOrder(order, o.broker.GetPositions()); !ok {
		return model.StrategyTrade{}, reason
	}

	executed, err := o.broker.PlaceOrder(order)
	if err != nil {
		if errors.Is(err, broker.ErrInsufficientMargin) {
			return model.StrategyTrade{}, "insufficient margin"
		}
		return model.StrategyTrade{}, fmt.Sprintf("order rejected: %v", err)
	}
	if err := o.rec.RecordOrder(executed); err != nil {
		log.Printf("[ERROR] record order %s: %v", executed.ID, err)
	}

	trade := model.StrategyTrade{
		TradeID:    executed.ID,
		StrategyID: opp.StrategyID,
		Symbol:     opp.Symbol,
		Side:       model.SideBuy,
		EntryPrice: executed.ExecutedPrice,
		Quantity:   executed.ExecutedQty,
		Target:     opp.TargetPrice,
		StopLoss:   opp.StopLoss,
		EntryTime:  executed.ExecutedAt,
		Status:     model.TradeOpen,
	}

	o.mu.Lock()
	o.active[trade.TradeID] = trade
	perf := o.perfLocked(opp.StrategyID, opp.StrategyName)
	perf.TotalTrades++
	perf.ActivePositions++
	perf.LastSignalTime = opp.Timestamp
	o.mu.Unlock()

	if err := o.rec.RecordStrategyTrade(trade); err != nil {
		log.Printf("[ERROR] record trade %s: %v", trade.TradeID, err)
	}
	return trade, ""
}

// EvaluateExits checks every open trade against its target and stop at the
// latest traded price and squares off those that have crossed either level.
func (o *Orchestrator) EvaluateExits(ctx context.Context) []model.StrategyTrade {
	var closed []model.StrategyTrade

	for _, trade := range o.ActiveTrades() {
		if err := ctx.Err(); err != nil {
			break
		}

		price, err := o.provider.GetLTP(ctx, trade.Symbol)
		if err != nil {
			log.Printf("[WARN] exit check %s: %v", trade.Symbol, err)
			continue
		}
		o.broker.MarkToMarket(trade.Symbol, price)

		hitTarget := trade.Target.Sign() > 0 && price.GreaterThanOrEqual(trade.Target)
		hitStop := trade.StopLoss.Sign() > 0 && price.LessThanOrEqual(trade.StopLoss)
		if !hitTarget && !hitStop {
			continue
		}

		order, err := o.broker.SquareOff(trade.Symbol, trade.Quantity, price)
		if err != nil {
			log.Printf("[ERROR] square off %s: %v", trade.Symbol, err)
			continue
		}
		if err := o.rec.RecordOrder(order); err != nil {
			log.Printf("[ERROR] record order %s: %v", order.ID, err)
		}

		done := o.settleClose(trade, order)
		closed = append(closed, done)

		why := "target"
		if hitStop {
			why = "stop loss"
		}
		log.Printf("[INFO] closed %s %s via %s, pnl %s", trade.StrategyID, trade.Symbol, why, done.PnL.StringFixed(2))
	}
	return closed
}

// settleClose finalizes a trade's P&L and rolls it into the strategy's
// performance record.
func (o *Orchestrator) settleClose(trade model.StrategyTrade, exit model.Order) model.StrategyTrade {
	qty := decimal.NewFromInt(trade.Quantity)
	roundTripCost := o.opts.Commission.Mul(decimal.NewFromInt(2))
	pnl := exit.ExecutedPrice.Sub(trade.EntryPrice).Mul(qty).Sub(roundTripCost)

	trade.ExitPrice = exit.ExecutedPrice
	trade.ExitTime = exit.ExecutedAt
	trade.PnL = pnl
	trade.Status = model.TradeClosed

	o.mu.Lock()
	delete(o.active, trade.TradeID)
	perf := o.perfLocked(trade.StrategyID, "")
	if pnl.Sign() > 0 {
		perf.WinningTrades++
	} else {
		perf.LosingTrades++
	}
	perf.TotalPnL = perf.TotalPnL.Add(pnl)
	// TotalTrades counts entries, so open trades dilute the win rate until
	// they close.
	if perf.TotalTrades > 0 {
		perf.WinRate = float64(perf.WinningTrades) / float64(perf.TotalTrades)
		perf.AvgProfitPerTrade = perf.TotalPnL.Div(decimal.NewFromInt(int64(perf.TotalTrades))).Round(2)
	}
	if perf.ActivePositions > 0 {
		perf.ActivePositions--
	}

	peak := o.pnlPeaks[trade.StrategyID]
	if perf.TotalPnL.GreaterThan(peak) {
		peak = perf.TotalPnL
		o.pnlPeaks[trade.StrategyID] = peak
	}
	if dd := peak.Sub(perf.TotalPnL); dd.GreaterThan(perf.MaxDrawdown) {
		perf.MaxDrawdown = dd
	}
	o.mu.Unlock()

	o.risk.UpdateDailyTracking(pnl)

	if err := o.rec.RecordStrategyTrade(trade); err != nil {
		log.Printf("[ERROR] record trade %s: %v", trade.TradeID, err)
	}
	return trade
}

// ActiveTrades returns the open strategy-attributed trades.
func (o *Orchestrator) ActiveTrades() []model.StrategyTrade {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.StrategyTrade, 0, len(o.active))
	for _, t := range o.active {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}

// GetStrategyPerformance returns per-strategy results, ordered by id.
func (o *Orchestrator) GetStrategyPerformance() []model.StrategyPerformance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.StrategyPerformance, 0, len(o.performance))
	for _, p := range o.performance {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// SnapshotPerformance persists the current per-strategy results alongside
// account stats. Called by the scheduler at end of day.
func (o *Orchestrator) SnapshotPerformance() error {
	perf := o.GetStrategyPerformance()
	if len(perf) == 0 {
		return nil
	}
	return o.rec.RecordPerformance(perf, o.broker.GetPaperTradingStats())
}

func (o *Orchestrator) strategyActiveCount(strategyID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, t := range o.active {
		if t.StrategyID == strategyID {
			n++
		}
	}
	return n
}

// perfLocked returns the performance record for a strategy, creating it on
// first use. Callers hold the mutex.
func (o *Orchestrator) perfLocked(strategyID, name string) *model.StrategyPerformance {
	p, ok := o.performance[strategyID]
	if !ok {
		p = &model.StrategyPerformance{StrategyID: strategyID, StrategyName: name}
		o.performance[strategyID] = p
	}
	if p.StrategyName == "" && name != "" {
		p.StrategyName = name
	}
	return p
}
