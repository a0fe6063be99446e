package scheduler

import (
	"context"
	"fmt"
	"log"

	"PaperPilot/internal/broker"
	"PaperPilot/internal/notifier"
	"PaperPilot/internal/orchestrator"
	"PaperPilot/internal/risk"
	"PaperPilot/internal/scanner"

	"github.com/robfig/cron/v3"
)

// Scheduler manages calendar tasks and Telegram commands.
type Scheduler struct {
	Cron         *cron.Cron
	Scanner      *scanner.Scanner
	Orchestrator *orchestrator.Orchestrator
	Broker       *broker.PaperBroker
	Risk         *risk.Manager
	Notifier     *notifier.TelegramNotifier
	Ctx          context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, orc *orchestrator.Orchestrator, b *broker.PaperBroker, rm *risk.Manager, tn *notifier.TelegramNotifier) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Scanner:      sc,
		Orchestrator: orc,
		Broker:       b,
		Risk:         rm,
		Notifier:     tn,
		Ctx:          ctx,
	}
}

// RegisterAll registers the daily risk reset and end-of-day summary tasks.
func (s *Scheduler) RegisterAll(dailyResetCron, eodSummaryCron string) error {
	if _, err := s.Cron.AddFunc(dailyResetCron, s.dailyReset); err != nil {
		return fmt.Errorf("register daily reset: %w", err)
	}
	if _, err := s.Cron.AddFunc(eodSummaryCron, s.eodSummary); err != nil {
		return fmt.Errorf("register eod summary: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) dailyReset() {
	log.Println("[INFO] running daily risk reset")
	s.Risk.ResetDailyTracking()
	s.trySend("🌅 Daily risk counters reset, trading resumed")
}

func (s *Scheduler) eodSummary() {
	log.Println("[INFO] running end-of-day summary")

	if err := s.Orchestrator.SnapshotPerformance(); err != nil {
		log.Printf("[ERROR] snapshot performance: %v", err)
	}

	report := notifier.FormatPaperStats(s.Broker.GetPaperTradingStats())
	if perf := s.Orchestrator.GetStrategyPerformance(); len(perf) > 0 {
		report += "\n" + notifier.FormatStrategyPerformance(perf)
	}
	s.trySend(report)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/scan":
		result := s.Scanner.ScanOnce(s.Ctx)
		if result == nil {
			return "⏳ A scan is already in flight, try again shortly"
		}
		return notifier.FormatScanReport(result)
	case "/stats":
		return notifier.FormatPaperStats(s.Broker.GetPaperTradingStats())
	case "/positions":
		return notifier.FormatPositions(s.Broker.GetPositions())
	case "/performance":
		return notifier.FormatStrategyPerformance(s.Orchestrator.GetStrategyPerformance())
	case "/risk":
		return notifier.FormatRiskSummary(s.Risk.Summary())
	case "/pause":
		s.Orchestrator.DisableAutoTrading()
		return "⏸ Auto trading paused, open trades still managed"
	case "/resume":
		s.Orchestrator.EnableAutoTrading()
		return "▶️ Auto trading resumed"
	default:
		return "Available commands:\n• /scan\n• /stats\n• /positions\n• /performance\n• /risk\n• /pause\n• /resume"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
