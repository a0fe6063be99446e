package broker

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

var (
	// ErrInsufficientMargin is returned when available margin cannot cover
	// an order. The account is left untouched.
	ErrInsufficientMargin = errors.New("insufficient margin")

	// ErrOrder is returned for orders that are invalid regardless of the
	// account state, such as selling more than the open quantity.
	ErrOrder = errors.New("invalid order")
)

// Config holds the simulation parameters of the virtual broker.
type Config struct {
	InitialBalance decimal.Decimal
	Commission     decimal.Decimal // flat fee per executed order
	SlippageFactor decimal.Decimal // applied to market orders only
	MarginRate     decimal.Decimal // fraction of notional reserved as margin
}

// PaperBroker simulates order execution against a virtual account. All
// operations are atomic under one mutex; money is tracked in two ledgers,
// cash (actual flows including commissions) and margin capital (a constant
// pool split between available and used).
type PaperBroker struct {
	mu  sync.Mutex
	cfg Config

	cash            decimal.Decimal
	availableMargin decimal.Decimal
	usedMargin      decimal.Decimal
	initialBalance  decimal.Decimal

	positions map[string]model.Position
	// margin reserved per open symbol; the final close releases the exact
	// remainder so the margin pool never drifts
	posMargin map[string]decimal.Decimal
	orders    map[string]model.Order
	orderIDs  []string // insertion order, for history listing

	totalCommission decimal.Decimal
	closedTrades    int
	winningTrades   int
	losingTrades    int
	peakValue       decimal.Decimal
	maxDrawdown     decimal.Decimal
}

func NewPaperBroker(cfg Config) *PaperBroker {
	return &PaperBroker{
		cfg:             cfg,
		cash:            cfg.InitialBalance,
		availableMargin: cfg.InitialBalance,
		usedMargin:      decimal.Zero,
		initialBalance:  cfg.InitialBalance,
		positions:       make(map[string]model.Position),
		posMargin:       make(map[string]decimal.Decimal),
		orders:          make(map[string]model.Order),
		peakValue:       cfg.InitialBalance,
	}
}

// newOrderID generates a broker order id like PAPER_3FA8C2D1.
func newOrderID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "PAPER_" + strings.ToUpper(raw[:8])
}

// PlaceOrder validates, margins, and synchronously executes an order.
// On any failure before execution the account is unchanged.
func (b *PaperBroker) PlaceOrder(order model.Order) (model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 1. Validation that needs no account state.
	if order.Quantity <= 0 {
		return order, fmt.Errorf("%w: quantity %d", ErrOrder, order.Quantity)
	}
	if order.Price.Sign() <= 0 {
		return order, fmt.Errorf("%w: price %s", ErrOrder, order.Price)
	}

	// 2. Sells must close an existing long, never exceed it.
	if order.Side == model.SideSell {
		pos, ok := b.positions[order.Symbol]
		if !ok || pos.Side != model.SideBuy {
			return order, fmt.Errorf("%w: no open long position in %s", ErrOrder, order.Symbol)
		}
		if order.Quantity > pos.Quantity {
			return order, fmt.Errorf("%w: sell %d exceeds open %d in %s",
				ErrOrder, order.Quantity, pos.Quantity, order.Symbol)
		}
	}

	// 3. Execution price: slippage hits market orders only, against the
	// trader in both directions.
	execPrice := order.Price
	if order.Type == model.OrderMarket && b.cfg.SlippageFactor.Sign() > 0 {
		one := decimal.NewFromInt(1)
		if order.Side == model.SideBuy {
			execPrice = order.Price.Mul(one.Add(b.cfg.SlippageFactor))
		} else {
			execPrice = order.Price.Mul(one.Sub(b.cfg.SlippageFactor))
		}
		execPrice = execPrice.Round(2)
	}

	qty := decimal.NewFromInt(order.Quantity)

	// 4. Margin check for entries.
	required := decimal.Zero
	if order.Side == model.SideBuy {
		required = execPrice.Mul(qty).Mul(b.cfg.MarginRate)
		if required.GreaterThan(b.availableMargin) {
			return order, fmt.Errorf("%w: need %s, available %s",
				ErrInsufficientMargin, required.StringFixed(2), b.availableMargin.StringFixed(2))
		}
	}

	// 5. Submit: assign id and reserve margin.
	now := time.Now()
	order, err := order.Submitted(newOrderID(), required, now)
	if err != nil {
		return order, err
	}
	b.availableMargin = b.availableMargin.Sub(required)
	b.usedMargin = b.usedMargin.Add(required)

	// 6. Execute synchronously and settle cash and positions.
	order, err = order.Executed(execPrice, order.Quantity, now)
	if err != nil {
		// unreachable after a successful submit; restore margin anyway
		b.availableMargin = b.availableMargin.Add(required)
		b.usedMargin = b.usedMargin.Sub(required)
		return order, err
	}

	if order.Side == model.SideBuy {
		b.settleBuy(order, execPrice, qty, now)
	} else {
		b.settleSell(order, execPrice, qty)
	}

	b.totalCommission = b.totalCommission.Add(b.cfg.Commission)

	// 7. Record and refresh equity watermarks.
	b.orders[order.ID] = order
	b.orderIDs = append(b.orderIDs, order.ID)
	b.updateWatermarks()

	log.Printf("[INFO] executed %s %s %d %s @ %s (order %s)",
		order.Side, order.Symbol, order.Quantity, order.Type, execPrice.StringFixed(2), order.ID)
	return order, nil
}

func (b *PaperBroker) settleBuy(order model.Order, execPrice, qty decimal.Decimal, now time.Time) {
	cost := execPrice.Mul(qty).Add(b.cfg.Commission)
	b.cash = b.cash.Sub(cost)

	if pos, ok := b.positions[order.Symbol]; ok {
		b.positions[order.Symbol] = pos.AveragedIn(order.Quantity, execPrice)
	} else {
		b.positions[order.Symbol] = model.NewPosition(order.Symbol, order.Quantity, execPrice, model.SideBuy, now)
	}
	b.posMargin[order.Symbol] = b.posMargin[order.Symbol].Add(order.ReservedMargin)
}

func (b *PaperBroker) settleSell(order model.Order, execPrice, qty decimal.Decimal) {
	pos := b.positions[order.Symbol]

	// Release the margin reserved for the closed quantity. A full close
	// releases the tracked remainder exactly; partial closes release the
	// proportional share.
	var released decimal.Decimal
	if order.Quantity == pos.Quantity {
		released = b.posMargin[order.Symbol]
	} else {
		released = pos.EntryPrice.Mul(qty).Mul(b.cfg.MarginRate)
		if released.GreaterThan(b.posMargin[order.Symbol]) {
			released = b.posMargin[order.Symbol]
		}
	}
	b.usedMargin = b.usedMargin.Sub(released)
	b.availableMargin = b.availableMargin.Add(released)

	pos, realized := pos.Reduced(order.Quantity, execPrice, b.cfg.Commission)
	b.cash = b.cash.Add(execPrice.Mul(qty)).Sub(b.cfg.Commission)

	if pos.Quantity == 0 {
		delete(b.positions, order.Symbol)
		delete(b.posMargin, order.Symbol)
	} else {
		b.positions[order.Symbol] = pos
		b.posMargin[order.Symbol] = b.posMargin[order.Symbol].Sub(released)
	}

	b.closedTrades++
	if realized.Sign() > 0 {
		b.winningTrades++
	} else {
		b.losingTrades++
	}
}

// CancelOrder cancels a non-terminal order and releases its reserved
// margin. Returns false if the order is unknown or already terminal.
func (b *PaperBroker) CancelOrder(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok {
		return false
	}
	cancelled, err := order.Cancelled(time.Now())
	if err != nil {
		return false
	}
	b.availableMargin = b.availableMargin.Add(order.ReservedMargin)
	b.usedMargin = b.usedMargin.Sub(order.ReservedMargin)
	b.orders[orderID] = cancelled
	log.Printf("[INFO] cancelled order %s, released margin %s", orderID, order.ReservedMargin.StringFixed(2))
	return true
}

// GetOrderStatus returns the order with the given broker id.
func (b *PaperBroker) GetOrderStatus(orderID string) (model.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[orderID]
	return order, ok
}

// GetAccountBalance returns a snapshot of the money ledgers.
func (b *PaperBroker) GetAccountBalance() model.AccountLedger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.AccountLedger{
		CashBalance:         b.cash,
		AvailableMargin:     b.availableMargin,
		UsedMargin:          b.usedMargin,
		InitialBalance:      b.initialBalance,
		TotalCommissionPaid: b.totalCommission,
		PeakValue:           b.peakValue,
		MaxDrawdown:         b.maxDrawdown,
		MaxDrawdownPct:      b.maxDrawdownPctLocked(),
	}
}

// GetPositions returns a copy of all open positions.
func (b *PaperBroker) GetPositions() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out
}

// MarkToMarket refreshes the unrealized P&L of one position against the
// latest traded price. No-op for symbols without an open position.
func (b *PaperBroker) MarkToMarket(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[symbol]
	if !ok {
		return
	}
	b.positions[symbol] = pos.MarkedToMarket(price)
	b.updateWatermarks()
}

// SquareOff closes quantity shares of a position at the given market price.
// It is a convenience wrapper over a market sell order.
func (b *PaperBroker) SquareOff(symbol string, quantity int64, price decimal.Decimal) (model.Order, error) {
	return b.PlaceOrder(model.NewOrder(symbol, model.SideSell, model.OrderMarket, quantity, price))
}

// GetPaperTradingStats computes the account performance summary. Realized
// P&L is measured at the account level, cash against initial balance, so a
// flat round trip shows exactly the two commissions paid.
func (b *PaperBroker) GetPaperTradingStats() model.PaperStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statsLocked()
}

func (b *PaperBroker) statsLocked() model.PaperStats {
	unrealized := decimal.Zero
	for _, p := range b.positions {
		unrealized = unrealized.Add(p.UnrealizedPnL)
	}

	realized := b.cash.Sub(b.initialBalance)
	for _, p := range b.positions {
		// open positions have cash tied up at cost, not lost
		realized = realized.Add(p.EntryPrice.Mul(decimal.NewFromInt(p.Quantity)))
	}

	returnPct := decimal.Zero
	if b.initialBalance.Sign() > 0 {
		returnPct = realized.Div(b.initialBalance).Mul(decimal.NewFromInt(100)).Round(4)
	}

	winRate := 0.0
	if b.closedTrades > 0 {
		winRate = float64(b.winningTrades) / float64(b.closedTrades)
	}

	pending := 0
	for _, o := range b.orders {
		if !o.IsTerminal() {
			pending++
		}
	}

	return model.PaperStats{
		InitialBalance:      b.initialBalance,
		CurrentBalance:      b.cash,
		AvailableMargin:     b.availableMargin,
		UsedMargin:          b.usedMargin,
		UnrealizedPnL:       unrealized,
		RealizedPnL:         realized,
		TotalReturnPct:      returnPct,
		TotalTrades:         b.closedTrades,
		WinningTrades:       b.winningTrades,
		LosingTrades:        b.losingTrades,
		WinRate:             winRate,
		TotalCommissionPaid: b.totalCommission,
		MaxDrawdown:         b.maxDrawdown,
		MaxDrawdownPct:      b.maxDrawdownPctLocked(),
		ActivePositions:     len(b.positions),
		PendingOrders:       pending,
	}
}

// Reset closes the books and restarts the account at newBalance. Open
// positions are discarded, not squared off; callers square off first if
// they want final P&L to include them.
func (b *PaperBroker) Reset(newBalance decimal.Decimal) model.ResetResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	final := b.statsLocked()
	b.cash = newBalance
	b.availableMargin = newBalance
	b.usedMargin = decimal.Zero
	b.initialBalance = newBalance
	b.positions = make(map[string]model.Position)
	b.posMargin = make(map[string]decimal.Decimal)
	b.orders = make(map[string]model.Order)
	b.orderIDs = nil
	b.totalCommission = decimal.Zero
	b.closedTrades = 0
	b.winningTrades = 0
	b.losingTrades = 0
	b.peakValue = newBalance
	b.maxDrawdown = decimal.Zero

	log.Printf("[INFO] paper account reset, new balance %s", newBalance.StringFixed(2))
	return model.ResetResult{FinalStats: final, NewBalance: newBalance}
}

// Orders returns all recorded orders in placement order.
func (b *PaperBroker) Orders() []model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Order, 0, len(b.orderIDs))
	for _, id := range b.orderIDs {
		out = append(out, b.orders[id])
	}
	return out
}

// equityLocked values the account as cash plus open positions at cost plus
// their unrealized P&L. Callers hold the mutex.
func (b *PaperBroker) equityLocked() decimal.Decimal {
	eq := b.cash
	for _, p := range b.positions {
		eq = eq.Add(p.EntryPrice.Mul(decimal.NewFromInt(p.Quantity))).Add(p.UnrealizedPnL)
	}
	return eq
}

// updateWatermarks tracks the equity peak and the deepest absolute drop from
// it. Callers hold the mutex.
func (b *PaperBroker) updateWatermarks() {
	eq := b.equityLocked()
	if eq.GreaterThan(b.peakValue) {
		b.peakValue = eq
	}
	if dd := b.peakValue.Sub(eq); dd.GreaterThan(b.maxDrawdown) {
		b.maxDrawdown = dd
	}
}

// maxDrawdownPctLocked converts the absolute drawdown into a fraction of the
// peak value. Callers hold the mutex.
func (b *PaperBroker) maxDrawdownPctLocked() decimal.Decimal {
	if b.peakValue.Sign() <= 0 {
		return decimal.Zero
	}
	return b.maxDrawdown.Div(b.peakValue)
}
