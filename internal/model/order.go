package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// OrderStatus is the order lifecycle state. Orders move
// PENDING -> SUBMITTED -> EXECUTED, or PENDING/SUBMITTED -> CANCELLED.
// EXECUTED and CANCELLED are terminal.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusSubmitted OrderStatus = "SUBMITTED"
	StatusExecuted  OrderStatus = "EXECUTED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Order is a virtual broker order. State changes go through the transition
// methods below, which return a new value so every step is auditable.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Quantity       int64
	Price          decimal.Decimal
	StopLoss       decimal.Decimal // zero if unset
	Target         decimal.Decimal // zero if unset
	Status         OrderStatus
	ReservedMargin decimal.Decimal
	SubmittedAt    time.Time
	ExecutedAt     time.Time
	ExecutedPrice  decimal.Decimal
	ExecutedQty    int64
	CancelledAt    time.Time
}

// NewOrder creates a PENDING order awaiting submission.
func NewOrder(symbol string, side OrderSide, typ OrderType, quantity int64, price decimal.Decimal) Order {
	return Order{
		Symbol:   symbol,
		Side:     side,
		Type:     typ,
		Quantity: quantity,
		Price:    price,
		Status:   StatusPending,
	}
}

// IsTerminal reports whether the order has reached a final state.
func (o Order) IsTerminal() bool {
	return o.Status == StatusExecuted || o.Status == StatusCancelled
}

// Submitted transitions PENDING -> SUBMITTED, stamping the broker id and the
// margin reserved against the order.
func (o Order) Submitted(id string, reservedMargin decimal.Decimal, at time.Time) (Order, error) {
	if o.Status != StatusPending {
		return o, fmt.Errorf("order %s: cannot submit from %s", o.ID, o.Status)
	}
	o.ID = id
	o.ReservedMargin = reservedMargin
	o.Status = StatusSubmitted
	o.SubmittedAt = at
	return o, nil
}

// Executed transitions SUBMITTED -> EXECUTED with the fill details.
func (o Order) Executed(price decimal.Decimal, quantity int64, at time.Time) (Order, error) {
	if o.Status != StatusSubmitted {
		return o, fmt.Errorf("order %s: cannot execute from %s", o.ID, o.Status)
	}
	o.Status = StatusExecuted
	o.ExecutedPrice = price
	o.ExecutedQty = quantity
	o.ExecutedAt = at
	return o, nil
}

// Cancelled transitions PENDING or SUBMITTED -> CANCELLED.
func (o Order) Cancelled(at time.Time) (Order, error) {
	if o.IsTerminal() {
		return o, fmt.Errorf("order %s: cannot cancel from %s", o.ID, o.Status)
	}
	o.Status = StatusCancelled
	o.CancelledAt = at
	return o, nil
}
