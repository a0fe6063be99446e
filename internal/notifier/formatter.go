package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
	"PaperPilot/internal/risk"
)

var hundred = decimal.NewFromInt(100)

// FormatScanReport formats a completed scan into a Telegram message.
func FormatScanReport(result *model.ScanResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🔍 <b>Scan Report</b> | %s\n\n", result.Timestamp.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Symbols scanned: %d\n", result.TotalScanned))
	b.WriteString(fmt.Sprintf("Opportunities: %d\n", len(result.Opportunities)))
	b.WriteString(fmt.Sprintf("Sentiment: %s %s\n", sentimentEmoji(result.Sentiment), result.Sentiment))
	b.WriteString(fmt.Sprintf("Duration: %s\n", result.ScanDuration.Round(time.Millisecond)))

	if len(result.Opportunities) > 0 {
		b.WriteString("\n📈 <b>Top signals:</b>\n")
		for i, opp := range result.Opportunities {
			if i >= 10 {
				b.WriteString(fmt.Sprintf("... and %d more\n", len(result.Opportunities)-i))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s [%s] conf %.0f%% entry %s target %s stop %s\n",
				opp.Signal, opp.Symbol, opp.StrategyID, opp.Confidence*100,
				opp.EntryPrice.StringFixed(2), opp.TargetPrice.StringFixed(2), opp.StopLoss.StringFixed(2)))
		}
	}
	return b.String()
}

func sentimentEmoji(s model.Sentiment) string {
	switch s {
	case model.SentimentBullish:
		return "🟢"
	case model.SentimentBearish:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatTradeOpened formats an entry fill notification.
func FormatTradeOpened(trade model.StrategyTrade) string {
	var b strings.Builder
	b.WriteString("✅ <b>Trade Opened</b>\n\n")
	b.WriteString(fmt.Sprintf("%s %s x%d @ %s\n", trade.Side, trade.Symbol, trade.Quantity, trade.EntryPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Strategy: %s\n", trade.StrategyID))
	b.WriteString(fmt.Sprintf("Target: %s | Stop: %s\n", trade.Target.StringFixed(2), trade.StopLoss.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Order: %s\n", trade.TradeID))
	return b.String()
}

// FormatTradeClosed formats an exit notification with realized P&L.
func FormatTradeClosed(trade model.StrategyTrade) string {
	emoji := "🟢"
	if trade.PnL.Sign() < 0 {
		emoji = "🔴"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>Trade Closed</b>\n\n", emoji))
	b.WriteString(fmt.Sprintf("%s x%d\n", trade.Symbol, trade.Quantity))
	b.WriteString(fmt.Sprintf("Entry %s -> Exit %s\n", trade.EntryPrice.StringFixed(2), trade.ExitPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("P&amp;L: %s\n", trade.PnL.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Strategy: %s\n", trade.StrategyID))
	return b.String()
}

// FormatPaperStats formats the account performance summary.
func FormatPaperStats(stats model.PaperStats) string {
	var b strings.Builder
	b.WriteString("💼 <b>Paper Account</b>\n\n")
	b.WriteString(fmt.Sprintf("Balance: %s (started %s)\n", stats.CurrentBalance.StringFixed(2), stats.InitialBalance.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Available margin: %s | Used: %s\n", stats.AvailableMargin.StringFixed(2), stats.UsedMargin.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Realized P&amp;L: %s\n", stats.RealizedPnL.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Unrealized P&amp;L: %s\n", stats.UnrealizedPnL.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Return: %s%%\n", stats.TotalReturnPct.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Trades: %d (W %d / L %d, %.0f%% win)\n",
		stats.TotalTrades, stats.WinningTrades, stats.LosingTrades, stats.WinRate*100))
	b.WriteString(fmt.Sprintf("Commission paid: %s\n", stats.TotalCommissionPaid.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Max drawdown: %s (%s%%)\n",
		stats.MaxDrawdown.StringFixed(2), stats.MaxDrawdownPct.Mul(hundred).StringFixed(2)))
	b.WriteString(fmt.Sprintf("Open positions: %d\n", stats.ActivePositions))
	return b.String()
}

// FormatPositions formats the open position list.
func FormatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "📭 No open positions"
	}
	var b strings.Builder
	b.WriteString("📌 <b>Open Positions</b>\n\n")
	for _, p := range positions {
		b.WriteString(fmt.Sprintf("%s %s x%d @ %s, unrealized %s\n",
			p.Side, p.Symbol, p.Quantity, p.EntryPrice.StringFixed(2), p.UnrealizedPnL.StringFixed(2)))
	}
	return b.String()
}

// FormatStrategyPerformance formats per-strategy results.
func FormatStrategyPerformance(perf []model.StrategyPerformance) string {
	if len(perf) == 0 {
		return "📭 No closed trades yet"
	}
	var b strings.Builder
	b.WriteString("🏆 <b>Strategy Performance</b>\n\n")
	for _, p := range perf {
		b.WriteString(fmt.Sprintf("<b>%s</b>\n", p.StrategyID))
		b.WriteString(fmt.Sprintf("  Trades: %d (W %d / L %d, %.0f%% win)\n",
			p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate*100))
		b.WriteString(fmt.Sprintf("  Total P&amp;L: %s | Avg: %s\n", p.TotalPnL.StringFixed(2), p.AvgProfitPerTrade.StringFixed(2)))
		b.WriteString(fmt.Sprintf("  Open: %d\n", p.ActivePositions))
	}
	return b.String()
}

// FormatRiskSummary formats the day's risk state.
func FormatRiskSummary(summary risk.Summary) string {
	var b strings.Builder
	b.WriteString("🛡 <b>Risk Status</b>\n\n")
	b.WriteString(fmt.Sprintf("Daily P&amp;L: %s\n", summary.DailyPnL.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Trades today: %d\n", summary.DailyTrades))
	if summary.MaxDailyLoss.Sign() > 0 {
		b.WriteString(fmt.Sprintf("Daily loss limit: %s\n", summary.MaxDailyLoss.StringFixed(2)))
	}
	if summary.TradingHalted {
		b.WriteString("⛔ Trading halted: daily loss limit reached\n")
	} else {
		b.WriteString("Trading: active\n")
	}
	b.WriteString(fmt.Sprintf("Last reset: %s\n", summary.LastResetAt.Format("2006-01-02 15:04")))
	return b.String()
}
