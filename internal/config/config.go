package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL          string `yaml:"base_url"`
		APIKey           string `yaml:"api_key"`
		RateLimitDelayMs int    `yaml:"rate_limit_delay_ms"`
		MaxRetries       int    `yaml:"max_retries"`
		UseMock          bool   `yaml:"use_mock"`
	} `yaml:"data_source"`
	Scanner struct {
		IntervalSeconds int      `yaml:"interval_seconds"`
		MaxConcurrent   int      `yaml:"max_concurrent"`
		MinConfidence   float64  `yaml:"min_confidence"`
		Universe        []string `yaml:"universe"`
	} `yaml:"scanner"`
	Broker struct {
		InitialBalance float64 `yaml:"initial_balance"`
		Commission     float64 `yaml:"commission"`
		SlippageFactor float64 `yaml:"slippage_factor"`
		MarginRate     float64 `yaml:"margin_rate"`
	} `yaml:"broker"`
	Risk struct {
		RiskPerTrade            float64 `yaml:"risk_per_trade"`
		MaxPositionSize         int64   `yaml:"max_position_size"`
		MaxOpenPositions        int     `yaml:"max_open_positions"`
		MaxDailyLoss            float64 `yaml:"max_daily_loss"`
		MaxPositionsPerStrategy int     `yaml:"max_positions_per_strategy"`
		MinRiskReward           float64 `yaml:"min_risk_reward"`
	} `yaml:"risk"`
	Schedule struct {
		DailyResetCron string `yaml:"daily_reset_cron"`
		EODSummaryCron string `yaml:"eod_summary_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCAN_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.IntervalSeconds = n
		}
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Broker.InitialBalance = f
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.DataSource.RateLimitDelayMs == 0 {
		cfg.DataSource.RateLimitDelayMs = 200
	}
	if cfg.DataSource.MaxRetries == 0 {
		cfg.DataSource.MaxRetries = 3
	}
	if cfg.Scanner.IntervalSeconds == 0 {
		cfg.Scanner.IntervalSeconds = 300
	}
	if cfg.Scanner.MaxConcurrent == 0 {
		cfg.Scanner.MaxConcurrent = 50
	}
	if cfg.Scanner.MinConfidence == 0 {
		cfg.Scanner.MinConfidence = 0.7
	}
	if cfg.Broker.InitialBalance == 0 {
		cfg.Broker.InitialBalance = 100000
	}
	if cfg.Broker.Commission == 0 {
		cfg.Broker.Commission = 20
	}
	if cfg.Broker.SlippageFactor == 0 {
		cfg.Broker.SlippageFactor = 0.001
	}
	if cfg.Broker.MarginRate == 0 {
		cfg.Broker.MarginRate = 0.20
	}
	if cfg.Risk.RiskPerTrade == 0 {
		cfg.Risk.RiskPerTrade = 0.02
	}
	if cfg.Risk.MaxPositionSize == 0 {
		cfg.Risk.MaxPositionSize = 5000
	}
	if cfg.Risk.MaxOpenPositions == 0 {
		cfg.Risk.MaxOpenPositions = 10
	}
	if cfg.Risk.MaxPositionsPerStrategy == 0 {
		cfg.Risk.MaxPositionsPerStrategy = 3
	}
	if cfg.Risk.MinRiskReward == 0 {
		cfg.Risk.MinRiskReward = 1.5
	}
	if cfg.Schedule.DailyResetCron == "" {
		cfg.Schedule.DailyResetCron = "0 15 9 * * 1-5"
	}
	if cfg.Schedule.EODSummaryCron == "" {
		cfg.Schedule.EODSummaryCron = "0 45 15 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/paperpilot.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if !c.DataSource.UseMock && c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required unless use_mock is set")
	}
	if len(c.Scanner.Universe) == 0 {
		return fmt.Errorf("scanner.universe must list at least one symbol")
	}
	if c.Broker.InitialBalance <= 0 {
		return fmt.Errorf("broker.initial_balance must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0, 1)")
	}
	if c.Broker.MarginRate <= 0 || c.Broker.MarginRate > 1 {
		return fmt.Errorf("broker.margin_rate must be in (0, 1]")
	}
	return nil
}
