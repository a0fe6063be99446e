package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open virtual position. Quantity is always positive; a fully
// closed position is removed from the open set rather than going to zero.
type Position struct {
	Symbol        string
	Quantity      int64
	EntryPrice    decimal.Decimal // weighted average across same-direction fills
	Side          OrderSide
	EntryTime     time.Time
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// NewPosition opens a position from its first fill.
func NewPosition(symbol string, quantity int64, price decimal.Decimal, side OrderSide, at time.Time) Position {
	return Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
		Side:       side,
		EntryTime:  at,
	}
}

// AveragedIn returns the position after an additional same-direction fill,
// with the entry price recomputed as the quantity-weighted mean.
func (p Position) AveragedIn(quantity int64, price decimal.Decimal) Position {
	oldQty := decimal.NewFromInt(p.Quantity)
	addQty := decimal.NewFromInt(quantity)
	totalQty := oldQty.Add(addQty)
	p.EntryPrice = p.EntryPrice.Mul(oldQty).Add(price.Mul(addQty)).Div(totalQty)
	p.Quantity += quantity
	return p
}

// Reduced returns the position after a closing fill of the given quantity,
// together with the P&L realized by that fill (commission already deducted).
// Quantity must not exceed the open quantity; the broker enforces this.
func (p Position) Reduced(quantity int64, price, commission decimal.Decimal) (Position, decimal.Decimal) {
	realized := price.Sub(p.EntryPrice).Mul(decimal.NewFromInt(quantity)).Sub(commission)
	p.Quantity -= quantity
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	return p, realized
}

// MarkedToMarket returns the position with unrealized P&L recomputed against
// the given price.
func (p Position) MarkedToMarket(price decimal.Decimal) Position {
	diff := price.Sub(p.EntryPrice)
	if p.Side == SideSell {
		diff = diff.Neg()
	}
	p.UnrealizedPnL = diff.Mul(decimal.NewFromInt(p.Quantity))
	return p
}
