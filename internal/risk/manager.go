package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

// Limits holds the risk configuration applied to every trade decision.
type Limits struct {
	RiskPerTrade            float64 // fraction of capital risked per trade
	MaxPositionSize         int64   // hard cap on shares per order
	MaxOpenPositions        int     // cap on simultaneous open positions
	MaxDailyLoss            decimal.Decimal
	MaxPositionsPerStrategy int
	MinRiskReward           float64
}

// Summary is a point-in-time view of the day's risk state.
type Summary struct {
	DailyPnL      decimal.Decimal
	DailyTrades   int
	MaxDailyLoss  decimal.Decimal
	TradingHalted bool
	LastResetAt   time.Time
}

// Manager enforces position sizing and daily loss limits. Safe for
// concurrent use.
type Manager struct {
	mu          sync.Mutex
	limits      Limits
	dailyPnL    decimal.Decimal
	dailyTrades int
	halted      bool
	lastReset   time.Time
}

func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:    limits,
		lastReset: time.Now(),
	}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CalculatePositionSize sizes an order so the loss at the stop equals the
// configured fraction of capital. The result is floored to whole shares and
// clamped to [1, MaxPositionSize].
func (m *Manager) CalculatePositionSize(entry, stop, capital decimal.Decimal) (int64, error) {
	riskPerShare := entry.Sub(stop).Abs()
	if riskPerShare.IsZero() {
		return 0, fmt.Errorf("entry %s equals stop loss, cannot size position", entry)
	}
	if capital.Sign() <= 0 {
		return 0, fmt.Errorf("no capital available")
	}

	riskAmount := capital.Mul(decimal.NewFromFloat(m.limits.RiskPerTrade))
	qty := riskAmount.Div(riskPerShare).IntPart()

	if qty < 1 {
		qty = 1
	}
	if m.limits.MaxPositionSize > 0 && qty > m.limits.MaxPositionSize {
		qty = m.limits.MaxPositionSize
	}
	return qty, nil
}

// ValidateOrder checks an order against the daily loss limit and open
// position caps. Returns false with a human-readable reason on rejection.
func (m *Manager) ValidateOrder(order model.Order, positions []model.Position) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halted {
		return false, "trading halted: daily loss limit reached"
	}
	if order.Quantity <= 0 {
		return false, "quantity must be positive"
	}
	if m.limits.MaxPositionSize > 0 && order.Quantity > m.limits.MaxPositionSize {
		return false, fmt.Sprintf("quantity %d exceeds max position size %d", order.Quantity, m.limits.MaxPositionSize)
	}

	// Orders that add a new symbol count against the open position cap.
	// Closing or adding to an existing position does not.
	if order.Side == model.SideBuy && m.limits.MaxOpenPositions > 0 {
		existing := false
		for _, p := range positions {
			if p.Symbol == order.Symbol {
				existing = true
				break
			}
		}
		if !existing && len(positions) >= m.limits.MaxOpenPositions {
			return false, fmt.Sprintf("open positions at limit (%d)", m.limits.MaxOpenPositions)
		}
	}
	return true, ""
}

// UpdateDailyTracking records realized P&L from a closed trade and halts
// trading when cumulative daily losses breach the limit.
func (m *Manager) UpdateDailyTracking(realizedPnL decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL = m.dailyPnL.Add(realizedPnL)
	m.dailyTrades++

	if m.limits.MaxDailyLoss.Sign() > 0 && m.dailyPnL.Neg().GreaterThanOrEqual(m.limits.MaxDailyLoss) {
		m.halted = true
	}
}

// ResetDailyTracking clears the day's P&L and lifts any trading halt.
// Called by the scheduler at the start of each trading day.
func (m *Manager) ResetDailyTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL = decimal.Zero
	m.dailyTrades = 0
	m.halted = false
	m.lastReset = time.Now()
}

// Halted reports whether new entries are blocked by the daily loss limit.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// Summary returns a snapshot of the day's risk state.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summary{
		DailyPnL:      m.dailyPnL,
		DailyTrades:   m.dailyTrades,
		MaxDailyLoss:  m.limits.MaxDailyLoss,
		TradingHalted: m.halted,
		LastResetAt:   m.lastReset,
	}
}
