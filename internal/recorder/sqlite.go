package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"PaperPilot/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database. Monetary
// values are stored as TEXT to keep their exact decimal representation.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			total_scanned  INTEGER,
			opportunities  INTEGER,
			duration_ms    INTEGER,
			sentiment      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_ts ON scans(timestamp)`,

		`CREATE TABLE IF NOT EXISTS opportunities (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			symbol        TEXT,
			strategy_id   TEXT,
			signal        TEXT,
			confidence    REAL,
			entry_price   TEXT,
			target_price  TEXT,
			stop_loss     TEXT,
			risk_reward   REAL,
			volume        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opps_ts ON opportunities(timestamp)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			order_id        TEXT,
			symbol          TEXT,
			side            TEXT,
			order_type      TEXT,
			quantity        INTEGER,
			price           TEXT,
			executed_price  TEXT,
			status          TEXT,
			reserved_margin TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_oid ON orders(order_id)`,

		`CREATE TABLE IF NOT EXISTS strategy_trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			trade_id    TEXT,
			strategy_id TEXT,
			symbol      TEXT,
			side        TEXT,
			entry_price TEXT,
			quantity    INTEGER,
			target      TEXT,
			stop_loss   TEXT,
			exit_price  TEXT,
			pnl         TEXT,
			status      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON strategy_trades(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy ON strategy_trades(strategy_id)`,

		`CREATE TABLE IF NOT EXISTS performance_snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			strategy_id      TEXT,
			total_trades     INTEGER,
			winning_trades   INTEGER,
			total_pnl        TEXT,
			win_rate         REAL,
			max_drawdown     TEXT,
			account_balance  TEXT,
			realized_pnl     TEXT,
			unrealized_pnl   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_perf_ts ON performance_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(result *model.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := result.Timestamp.Unix()
	if _, err := r.db.Exec(`INSERT INTO scans
		(timestamp, total_scanned, opportunities, duration_ms, sentiment)
		VALUES (?,?,?,?,?)`,
		ts, result.TotalScanned, len(result.Opportunities),
		result.ScanDuration.Milliseconds(), string(result.Sentiment),
	); err != nil {
		return err
	}

	for _, opp := range result.Opportunities {
		if _, err := r.db.Exec(`INSERT INTO opportunities
			(timestamp, symbol, strategy_id, signal, confidence,
			 entry_price, target_price, stop_loss, risk_reward, volume)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			ts, opp.Symbol, opp.StrategyID, string(opp.Signal), opp.Confidence,
			opp.EntryPrice.String(), opp.TargetPrice.String(), opp.StopLoss.String(),
			opp.RiskReward, opp.Volume,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordOrder(order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO orders
		(timestamp, order_id, symbol, side, order_type, quantity,
		 price, executed_price, status, reserved_margin)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), order.ID, order.Symbol, string(order.Side),
		string(order.Type), order.Quantity,
		order.Price.String(), order.ExecutedPrice.String(),
		string(order.Status), order.ReservedMargin.String(),
	)
	return err
}

func (r *SQLiteRecorder) RecordStrategyTrade(trade model.StrategyTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO strategy_trades
		(timestamp, trade_id, strategy_id, symbol, side, entry_price,
		 quantity, target, stop_loss, exit_price, pnl, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), trade.TradeID, trade.StrategyID, trade.Symbol,
		string(trade.Side), trade.EntryPrice.String(), trade.Quantity,
		trade.Target.String(), trade.StopLoss.String(),
		trade.ExitPrice.String(), trade.PnL.String(), string(trade.Status),
	)
	return err
}

func (r *SQLiteRecorder) RecordPerformance(perf []model.StrategyPerformance, stats model.PaperStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := time.Now().Unix()
	for _, p := range perf {
		if _, err := r.db.Exec(`INSERT INTO performance_snapshots
			(timestamp, strategy_id, total_trades, winning_trades, total_pnl,
			 win_rate, max_drawdown, account_balance, realized_pnl, unrealized_pnl)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			ts, p.StrategyID, p.TotalTrades, p.WinningTrades, p.TotalPnL.String(),
			p.WinRate, p.MaxDrawdown.String(),
			stats.CurrentBalance.String(), stats.RealizedPnL.String(), stats.UnrealizedPnL.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
