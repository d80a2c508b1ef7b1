// Package domain defines the core value types shared across the tradesim
// platform: orders and their executions, risk configuration, market data
// bars, strategy signals, and backtest run requests/results.
package domain

import (
	"time"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes market and limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order. The string values are a
// compatibility surface consumed by audit logs and dashboards; existing
// values are never removed or renamed.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

// RejectionReason identifies why an order was rejected. Values are stable
// string identifiers, append-only.
type RejectionReason string

const (
	RejectInvalidQuantity   RejectionReason = "invalid_quantity"
	RejectInsufficientFunds RejectionReason = "insufficient_funds"

	RejectRiskTradingDisabled RejectionReason = "risk_trading_disabled"
	RejectRiskPositionLimit   RejectionReason = "risk_position_limit"
	RejectRiskExposureLimit   RejectionReason = "risk_exposure_limit"
	RejectRiskDrawdownLimit   RejectionReason = "risk_drawdown_limit"
)

// Bar is a single OHLCV bar for one symbol.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// SignalType is the kind of action a strategy requests.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// Signal is a trading intent emitted by a strategy. TargetWeight is the
// desired fraction of equity in the symbol after acting on the signal
// (1.0 = fully invested, 0 = flat).
type Signal struct {
	Symbol       string
	Type         SignalType
	TargetWeight float64
	Timestamp    time.Time
}
