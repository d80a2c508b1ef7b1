package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderExecution is a single (partial or full) fill of an order. It is
// immutable once created.
type OrderExecution struct {
	ExecutionID string          `json:"execution_id"`
	OrderID     string          `json:"order_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	IsPartial   bool            `json:"is_partial"`
}

// Order is a trading order owned by the ExecutionSimulator that created it.
// All state changes go through methods that re-establish the order
// invariants; terminal orders (filled, rejected, cancelled) never change
// again.
type Order struct {
	ID         string           `json:"order_id"`
	Symbol     string           `json:"symbol"`
	Side       OrderSide        `json:"side"`
	Type       OrderType        `json:"order_type"`
	Qty        decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`

	Status OrderStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	FilledQty       decimal.Decimal `json:"filled_quantity"`
	AvgFillPrice    decimal.Decimal `json:"avg_fill_price"`
	TotalCommission decimal.Decimal `json:"total_commission"`

	Executions []OrderExecution `json:"executions,omitempty"`

	RejectionReason  RejectionReason `json:"rejection_reason,omitempty"`
	RejectionMessage string          `json:"rejection_message,omitempty"`
}

// NewOrder creates an order in status "new". Limit orders must carry a
// positive limit price; market orders must not carry one. The quantity must
// be positive (enforced again by the validator before execution, but a
// non-positive quantity here is a caller bug).
func NewOrder(symbol string, side OrderSide, typ OrderType, qty decimal.Decimal, limitPrice *decimal.Decimal, createdAt time.Time) (*Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("new order: empty symbol")
	}
	switch typ {
	case OrderTypeLimit:
		if limitPrice == nil || !limitPrice.IsPositive() {
			return nil, fmt.Errorf("new order: limit order for %s requires a positive limit price", symbol)
		}
	case OrderTypeMarket:
		if limitPrice != nil {
			return nil, fmt.Errorf("new order: market order for %s must not set a limit price", symbol)
		}
	default:
		return nil, fmt.Errorf("new order: unknown order type %q", typ)
	}

	return &Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Type:       typ,
		Qty:        qty,
		LimitPrice: limitPrice,
		Status:     OrderStatusNew,
		CreatedAt:  createdAt,
	}, nil
}

// IsTerminal reports whether the order is in a terminal state.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// RemainingQty returns the unfilled quantity.
func (o *Order) RemainingQty() decimal.Decimal {
	return o.Qty.Sub(o.FilledQty)
}

// MarkSubmitted transitions the order from "new" to "submitted".
func (o *Order) MarkSubmitted(ts time.Time) error {
	if o.Status != OrderStatusNew {
		return fmt.Errorf("order %s: cannot submit from status %q", o.ID, o.Status)
	}
	o.Status = OrderStatusSubmitted
	o.SubmittedAt = &ts
	return nil
}

// AddExecution appends a fill, updates the filled quantity, volume-weighted
// average fill price, and total commission, and derives the new status.
// Filling a terminal order or overfilling past the order quantity is a
// contract violation.
func (o *Order) AddExecution(exec OrderExecution) error {
	if o.IsTerminal() {
		return fmt.Errorf("order %s: cannot fill terminal order (status %q)", o.ID, o.Status)
	}
	if !exec.Quantity.IsPositive() {
		return fmt.Errorf("order %s: execution quantity must be positive, got %s", o.ID, exec.Quantity)
	}
	if !exec.Price.IsPositive() {
		return fmt.Errorf("order %s: execution price must be positive, got %s", o.ID, exec.Price)
	}
	newFilled := o.FilledQty.Add(exec.Quantity)
	if newFilled.GreaterThan(o.Qty) {
		return fmt.Errorf("order %s: fill of %s would exceed order quantity %s (already filled %s)",
			o.ID, exec.Quantity, o.Qty, o.FilledQty)
	}

	// VWAP update: avg = (avg*filled + price*qty) / (filled+qty).
	notional := o.AvgFillPrice.Mul(o.FilledQty).Add(exec.Price.Mul(exec.Quantity))
	o.AvgFillPrice = notional.Div(newFilled)
	o.FilledQty = newFilled
	o.TotalCommission = o.TotalCommission.Add(exec.Commission)
	o.Executions = append(o.Executions, exec)

	if o.FilledQty.Equal(o.Qty) {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	return nil
}

// Reject transitions the order to "rejected" with a reason. Rejecting a
// terminal order is a contract violation.
func (o *Order) Reject(reason RejectionReason, message string, ts time.Time) error {
	if o.IsTerminal() {
		return fmt.Errorf("order %s: cannot reject terminal order (status %q)", o.ID, o.Status)
	}
	o.Status = OrderStatusRejected
	o.RejectionReason = reason
	o.RejectionMessage = message
	o.RejectedAt = &ts
	return nil
}

// Cancel transitions a non-terminal order to "cancelled".
func (o *Order) Cancel(ts time.Time) error {
	if o.IsTerminal() {
		return fmt.Errorf("order %s: cannot cancel terminal order (status %q)", o.ID, o.Status)
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &ts
	return nil
}
