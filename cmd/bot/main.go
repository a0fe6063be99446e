package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/broker"
	"PaperPilot/internal/config"
	"PaperPilot/internal/marketdata"
	"PaperPilot/internal/model"
	"PaperPilot/internal/notifier"
	"PaperPilot/internal/orchestrator"
	"PaperPilot/internal/recorder"
	"PaperPilot/internal/risk"
	"PaperPilot/internal/scanner"
	"PaperPilot/internal/scheduler"
	tradesignal "PaperPilot/internal/signal"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] PaperPilot starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init market data provider
	var provider marketdata.Provider
	if cfg.DataSource.UseMock {
		mock := marketdata.NewMockProvider()
		for _, sym := range cfg.Scanner.Universe {
			mock.Prices[sym] = decimal.NewFromInt(100)
			mock.Bars[sym] = marketdata.GenerateBars(100, 100, 0.001, time.Now())
		}
		provider = mock
	} else {
		provider = marketdata.NewRESTProvider(
			cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy,
			30*time.Second,
			time.Duration(cfg.DataSource.RateLimitDelayMs)*time.Millisecond,
			cfg.DataSource.MaxRetries,
		)
	}
	log.Printf("[INFO] data source: %s", provider.Name())

	// Init paper broker
	pb := broker.NewPaperBroker(broker.Config{
		InitialBalance: decimal.NewFromFloat(cfg.Broker.InitialBalance),
		Commission:     decimal.NewFromFloat(cfg.Broker.Commission),
		SlippageFactor: decimal.NewFromFloat(cfg.Broker.SlippageFactor),
		MarginRate:     decimal.NewFromFloat(cfg.Broker.MarginRate),
	})

	// Init risk manager
	rm := risk.NewManager(risk.Limits{
		RiskPerTrade:            cfg.Risk.RiskPerTrade,
		MaxPositionSize:         cfg.Risk.MaxPositionSize,
		MaxOpenPositions:        cfg.Risk.MaxOpenPositions,
		MaxDailyLoss:            decimal.NewFromFloat(cfg.Risk.MaxDailyLoss),
		MaxPositionsPerStrategy: cfg.Risk.MaxPositionsPerStrategy,
		MinRiskReward:           cfg.Risk.MinRiskReward,
	})

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init orchestrator
	orc := orchestrator.New(pb, rm, provider, rec, orchestrator.Options{
		MinConfidence:           cfg.Scanner.MinConfidence,
		MinRiskReward:           cfg.Risk.MinRiskReward,
		MaxPositionsPerStrategy: cfg.Risk.MaxPositionsPerStrategy,
		Commission:              decimal.NewFromFloat(cfg.Broker.Commission),
	})

	// Init scanner, wired to trade on every result
	sc := scanner.New(provider, tradesignal.NewEngine(), scanner.Options{
		Interval:      time.Duration(cfg.Scanner.IntervalSeconds) * time.Second,
		MaxConcurrent: cfg.Scanner.MaxConcurrent,
		MinConfidence: cfg.Scanner.MinConfidence,
		Universe:      cfg.Scanner.Universe,
	})
	sc.OnResult(func(result *model.ScanResult) {
		if err := rec.RecordScan(result); err != nil {
			log.Printf("[ERROR] record scan: %v", err)
		}
		report := orc.ProcessOpportunities(ctx, result.Opportunities)
		for _, trade := range report.Executed {
			if err := tn.SendWithRetry(ctx, notifier.FormatTradeOpened(trade), 3); err != nil {
				log.Printf("[ERROR] send trade notification: %v", err)
			}
		}
		for _, closed := range orc.EvaluateExits(ctx) {
			if err := tn.SendWithRetry(ctx, notifier.FormatTradeClosed(closed), 3); err != nil {
				log.Printf("[ERROR] send close notification: %v", err)
			}
		}
	})
	sc.Start(ctx)
	defer sc.Stop()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, sc, orc, pb, rm, tn)
	if err := sched.RegisterAll(cfg.Schedule.DailyResetCron, cfg.Schedule.EODSummaryCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	// Optional: scan immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, scanning now")
		go sc.ScanOnce(ctx)
	}

	log.Println("[INFO] PaperPilot is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] PaperPilot stopped")
}
