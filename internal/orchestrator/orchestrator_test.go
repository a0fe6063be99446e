package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/broker"
	"PaperPilot/internal/marketdata"
	"PaperPilot/internal/model"
	"PaperPilot/internal/recorder"
	"PaperPilot/internal/risk"
)

func testOrchestrator(balance int64) (*Orchestrator, *broker.PaperBroker, *risk.Manager, *marketdata.MockProvider) {
	b := broker.NewPaperBroker(broker.Config{
		InitialBalance: decimal.NewFromInt(balance),
		Commission:     decimal.NewFromInt(20),
		SlippageFactor: decimal.Zero,
		MarginRate:     decimal.NewFromFloat(0.20),
	})
	rm := risk.NewManager(risk.Limits{
		RiskPerTrade:            0.02,
		MaxPositionSize:         5000,
		MaxOpenPositions:        10,
		MaxDailyLoss:            decimal.NewFromInt(50000),
		MaxPositionsPerStrategy: 3,
		MinRiskReward:           1.5,
	})
	provider := marketdata.NewMockProvider()
	o := New(b, rm, provider, recorder.NewNoopRecorder(), Options{
		MinConfidence:           0.7,
		MinRiskReward:           1.5,
		MaxPositionsPerStrategy: 3,
		Commission:              decimal.NewFromInt(20),
	})
	return o, b, rm, provider
}

func buyOpportunity(symbol, strategy string, conf float64) model.Opportunity {
	return model.Opportunity{
		Symbol:       symbol,
		StrategyID:   strategy,
		StrategyName: strategy,
		Signal:       model.SignalBuy,
		Confidence:   conf,
		EntryPrice:   decimal.NewFromInt(100),
		TargetPrice:  decimal.NewFromInt(104),
		StopLoss:     decimal.NewFromInt(98),
		RiskReward:   2.0,
		Timestamp:    time.Now(),
	}
}

func TestProcessOpportunitiesExecutesQualifying(t *testing.T) {
	o, b, _, _ := testOrchestrator(100000)

	report := o.ProcessOpportunities(context.Background(), []model.Opportunity{
		buyOpportunity("RELIANCE", "momentum", 0.85),
	})
	if len(report.Executed) != 1 {
		t.Fatalf("executed = %d, want 1 (skips: %+v)", len(report.Executed), report.Skipped)
	}

	trade := report.Executed[0]
	if trade.Quantity != 1000 { // 2% of 100000 risk over 2/share
		t.Errorf("quantity = %d, want 1000", trade.Quantity)
	}
	if !strings.HasPrefix(trade.TradeID, "PAPER_") {
		t.Errorf("trade id = %s, want PAPER_ prefix", trade.TradeID)
	}
	if len(b.GetPositions()) != 1 {
		t.Errorf("broker positions = %d, want 1", len(b.GetPositions()))
	}
	if len(o.ActiveTrades()) != 1 {
		t.Errorf("active trades = %d, want 1", len(o.ActiveTrades()))
	}
}

func TestEntryCountsAsTrade(t *testing.T) {
	o, _, _, provider := testOrchestrator(1000000)
	ctx := context.Background()

	report := o.ProcessOpportunities(ctx, []model.Opportunity{
		buyOpportunity("RELIANCE", "momentum", 0.9),
		buyOpportunity("TCS", "momentum", 0.9),
	})
	if len(report.Executed) != 2 {
		t.Fatalf("executed = %d, want 2 (skips: %+v)", len(report.Executed), report.Skipped)
	}

	perf := o.GetStrategyPerformance()
	if len(perf) != 1 || perf[0].TotalTrades != 2 {
		t.Fatalf("total trades after entry = %+v, want 2", perf)
	}
	if perf[0].ActivePositions != 2 {
		t.Errorf("active positions = %d, want 2", perf[0].ActivePositions)
	}

	// one winning close against two entries halves the win rate
	provider.Prices["RELIANCE"] = decimal.NewFromInt(105)
	if closed := o.EvaluateExits(ctx); len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	perf = o.GetStrategyPerformance()
	if perf[0].TotalTrades != 2 || perf[0].WinningTrades != 1 {
		t.Fatalf("after close: total %d winning %d, want 2/1", perf[0].TotalTrades, perf[0].WinningTrades)
	}
	if perf[0].WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", perf[0].WinRate)
	}
}

func TestSkipReasons(t *testing.T) {
	o, _, _, _ := testOrchestrator(100000)
	ctx := context.Background()

	cases := []struct {
		name   string
		opp    model.Opportunity
		reason string
	}{
		{"low confidence", buyOpportunity("A", "momentum", 0.5), "confidence"},
		{"short", func() model.Opportunity {
			opp := buyOpportunity("B", "momentum", 0.9)
			opp.Signal = model.SignalShort
			return opp
		}(), "short selling not supported"},
		{"sell signal", func() model.Opportunity {
			opp := buyOpportunity("C", "momentum", 0.9)
			opp.Signal = model.SignalSell
			return opp
		}(), "sell signals"},
		{"low risk reward", func() model.Opportunity {
			opp := buyOpportunity("D", "momentum", 0.9)
			opp.RiskReward = 1.2
			return opp
		}(), "risk/reward"},
		{"entry equals stop", func() model.Opportunity {
			opp := buyOpportunity("E", "momentum", 0.9)
			opp.StopLoss = opp.EntryPrice
			return opp
		}(), "position sizing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := o.ProcessOpportunities(ctx, []model.Opportunity{tc.opp})
			if len(report.Skipped) != 1 {
				t.Fatalf("skipped = %d, want 1", len(report.Skipped))
			}
			if !strings.Contains(report.Skipped[0].Reason, tc.reason) {
				t.Errorf("reason = %q, want substring %q", report.Skipped[0].Reason, tc.reason)
			}
		})
	}
}

func TestStrategyPositionLimit(t *testing.T) {
	o, _, _, _ := testOrchestrator(10000000)
	ctx := context.Background()

	opps := []model.Opportunity{
		buyOpportunity("A", "momentum", 0.9),
		buyOpportunity("B", "momentum", 0.9),
		buyOpportunity("C", "momentum", 0.9),
		buyOpportunity("D", "momentum", 0.9),
	}
	report := o.ProcessOpportunities(ctx, opps)
	if len(report.Executed) != 3 {
		t.Fatalf("executed = %d, want 3 (per-strategy cap)", len(report.Executed))
	}
	if len(report.Skipped) != 1 || !strings.Contains(report.Skipped[0].Reason, "position limit") {
		t.Fatalf("skipped = %+v, want one position-limit skip", report.Skipped)
	}

	// another strategy is unaffected by momentum's cap
	report = o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("E", "breakout", 0.9)})
	if len(report.Executed) != 1 {
		t.Errorf("other strategy blocked: %+v", report.Skipped)
	}
}

func TestInsufficientMarginSkips(t *testing.T) {
	o, _, _, _ := testOrchestrator(100)

	// sizing floors at 1 share; 100*0.2 margin fits in 100, so widen the
	// entry price until it cannot
	opp := buyOpportunity("A", "momentum", 0.9)
	opp.EntryPrice = decimal.NewFromInt(10000)
	opp.TargetPrice = decimal.NewFromInt(10400)
	opp.StopLoss = decimal.NewFromInt(9800)

	report := o.ProcessOpportunities(context.Background(), []model.Opportunity{opp})
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != "insufficient margin" {
		t.Fatalf("skipped = %+v, want insufficient margin", report.Skipped)
	}
}

func TestAutoTradingToggle(t *testing.T) {
	o, _, _, _ := testOrchestrator(100000)
	ctx := context.Background()

	o.DisableAutoTrading()
	report := o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("A", "momentum", 0.9)})
	if len(report.Executed) != 0 {
		t.Fatal("trade executed while auto trading disabled")
	}
	if report.Skipped[0].Reason != "auto trading disabled" {
		t.Errorf("reason = %q", report.Skipped[0].Reason)
	}

	o.EnableAutoTrading()
	report = o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("A", "momentum", 0.9)})
	if len(report.Executed) != 1 {
		t.Errorf("trade not executed after re-enable: %+v", report.Skipped)
	}
}

func TestEvaluateExitsOnTarget(t *testing.T) {
	o, b, rm, provider := testOrchestrator(100000)
	ctx := context.Background()

	report := o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("RELIANCE", "momentum", 0.9)})
	if len(report.Executed) != 1 {
		t.Fatalf("setup trade failed: %+v", report.Skipped)
	}

	// price crosses the 104 target
	provider.Prices["RELIANCE"] = decimal.NewFromInt(105)
	closed := o.EvaluateExits(ctx)
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}

	trade := closed[0]
	if trade.Status != model.TradeClosed {
		t.Errorf("status = %s, want CLOSED", trade.Status)
	}
	// (105-100)*1000 minus two 20 commissions
	if !trade.PnL.Equal(decimal.NewFromInt(4960)) {
		t.Errorf("pnl = %s, want 4960", trade.PnL)
	}
	if len(b.GetPositions()) != 0 {
		t.Errorf("position still open after exit")
	}
	if len(o.ActiveTrades()) != 0 {
		t.Errorf("trade still active after exit")
	}

	perf := o.GetStrategyPerformance()
	if len(perf) != 1 || perf[0].TotalTrades != 1 || perf[0].WinningTrades != 1 {
		t.Errorf("performance = %+v", perf)
	}
	if !rm.Summary().DailyPnL.Equal(decimal.NewFromInt(4960)) {
		t.Errorf("daily pnl = %s, want 4960", rm.Summary().DailyPnL)
	}
}

func TestEvaluateExitsOnStop(t *testing.T) {
	o, _, _, provider := testOrchestrator(100000)
	ctx := context.Background()

	o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("TCS", "meanrev", 0.9)})

	provider.Prices["TCS"] = decimal.NewFromInt(97) // below the 98 stop
	closed := o.EvaluateExits(ctx)
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	// (97-100)*1000 minus two commissions
	if !closed[0].PnL.Equal(decimal.NewFromInt(-3040)) {
		t.Errorf("pnl = %s, want -3040", closed[0].PnL)
	}

	perf := o.GetStrategyPerformance()
	if perf[0].LosingTrades != 1 {
		t.Errorf("losing trades = %d, want 1", perf[0].LosingTrades)
	}
}

func TestEvaluateExitsHoldsBetweenLevels(t *testing.T) {
	o, _, _, provider := testOrchestrator(100000)
	ctx := context.Background()

	o.ProcessOpportunities(ctx, []model.Opportunity{buyOpportunity("INFY", "momentum", 0.9)})

	provider.Prices["INFY"] = decimal.NewFromInt(101) // between stop and target
	if closed := o.EvaluateExits(ctx); len(closed) != 0 {
		t.Fatalf("closed = %d, want 0", len(closed))
	}
	if len(o.ActiveTrades()) != 1 {
		t.Error("trade closed while between levels")
	}
}
